package middleware

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aldor007/redisres/pkg/monitoring"
)

// AccessLog middleware writing one log line per request and reporting request time
type AccessLog struct {
	enabled bool
}

// NewAccessLogMiddleware returns access log handler, disabled middleware only reports metrics
func NewAccessLogMiddleware(enabled bool) *AccessLog {
	return &AccessLog{enabled: enabled}
}

// Handler wraps next handler
func (a *AccessLog) Handler(next http.Handler) http.Handler {
	fn := func(resWriter http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(resWriter, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		elapsed := time.Since(start)
		monitoring.Report().Histogram(monitoring.MetricRequestTime+";method:"+req.Method, elapsed.Seconds())
		if !a.enabled {
			return
		}

		monitoring.Log().Info("access log", zap.String("method", req.Method), zap.String("path", req.URL.Path),
			zap.Int("status", ww.Status()), zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", elapsed), zap.String("request_id", chiMiddleware.GetReqID(req.Context())))
	}

	return http.HandlerFunc(fn)
}
