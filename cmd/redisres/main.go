package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aldor007/redisres/pkg/config"
	"github.com/aldor007/redisres/pkg/diagnostics"
	"github.com/aldor007/redisres/pkg/monitoring"
	"github.com/aldor007/redisres/pkg/resource"
)

const (
	// Version of redisres
	Version = "0.1.0"
	// BANNER just fancy command line banner
	BANNER = `
               ___
 _ __ ___  __| (_)___ _ __ ___  ___
| '__/ _ \/ _' | / __| '__/ _ \/ __|
| | |  __/ (_| | \__ \ | |  __/\__ \
|_|  \___|\__,_|_|___/_|  \___||___/
 Version: %s
`
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run serves diagnostics until ctx is done and returns process exit code
func run(ctx context.Context, args []string) int {
	flags := flag.NewFlagSet("redisres", flag.ContinueOnError)
	configPath := flags.String("config", "configuration/config.yml", "Path to configuration")
	listenAddr := flags.String("listen", "", "Listen addr, overrides server.listen")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	fmt.Printf(BANNER, "v"+Version)

	cfg := config.Config{}
	if err := cfg.Load(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "unable to load config %s: %s\n", *configPath, err)
		return 1
	}

	var logger *zap.Logger
	if cfg.Server.LogLevel == "dev" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync() // flushes buffer, if any
	zap.ReplaceGlobals(logger)
	monitoring.RegisterLogger(logger)

	var metrics http.Handler
	if cfg.Server.Monitoring == "prometheus" {
		p := monitoring.NewPrometheusReporter()
		if err := p.RegisterResourceMetrics(); err != nil {
			logger.Error("unable to register metrics", zap.Error(err))
			return 1
		}
		if err := p.RegisterHTTPMetrics(); err != nil {
			logger.Error("unable to register metrics", zap.Error(err))
			return 1
		}
		monitoring.RegisterReporter(p)
		metrics = promhttp.Handler()
	}

	manager := resource.NewManager()
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("unable to close resources", zap.Error(err))
		}
	}()
	if err := cfg.Apply(manager); err != nil {
		logger.Error("unable to register resources", zap.Error(err))
		return 1
	}

	listen := cfg.Server.Listen
	if *listenAddr != "" {
		listen = *listenAddr
	}

	handler := diagnostics.NewHandler(manager, cfg.RequestTimeout())
	s := &http.Server{
		Addr:         listen,
		ReadTimeout:  cfg.RequestTimeout(),
		WriteTimeout: cfg.RequestTimeout() + time.Second,
		Handler:      handler.Router(cfg.Server.AccessLog, metrics),
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	served := make(chan error, 1)
	go func() {
		logger.Info("redisres listening", zap.String("listen", listen), zap.Strings("resources", manager.IDs()))
		err := s.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		if err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
		served <- err
	}()

	<-ctx.Done()
	logger.Info("redisres shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}

	if err := <-served; err != nil {
		return 1
	}

	return 0
}
