package resource

import (
	"context"
	"crypto/tls"
	"time"

	goRedis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/aldor007/redisres/pkg/monitoring"
)

// DefaultConnectTimeout bounds the handshake when server has no timeout configured
const DefaultConnectTimeout = 5 * time.Second

// Dialer creates client for given options. It must not block on network I/O.
type Dialer func(opt *goRedis.Options) *goRedis.Client

// Conn is a live connection handle returned by Manager.GetResource
type Conn struct {
	client       *goRedis.Client
	persistentID string
	serializer   Serializer
	prefix       string
	release      func() error
	closed       bool
}

// Client returns underlying go-redis client
func (c *Conn) Client() *goRedis.Client {
	return c.client
}

// PersistentID returns persistent id the connection was acquired under
func (c *Conn) PersistentID() string {
	return c.persistentID
}

// Serializer returns serializer selected for the resource
func (c *Conn) Serializer() Serializer {
	return c.serializer
}

// Prefix returns key prefix lib option
func (c *Conn) Prefix() string {
	return c.prefix
}

// Key prepends configured prefix to key
func (c *Conn) Key(key string) string {
	return c.prefix + key
}

// Closed reports whether handle was released
func (c *Conn) Closed() bool {
	return c.closed
}

// Close releases the handle. Pooled clients are closed when their last user releases them,
// clients handed over with SetResource are left open.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	monitoring.Report().Gauge(monitoring.MetricActive, -1)

	if c.release == nil {
		return nil
	}

	return c.release()
}

// redisOptions translates configuration into go-redis options
func (c Config) redisOptions() *goRedis.Options {
	opt := &goRedis.Options{
		Network:  c.Server.network(),
		Addr:     c.Server.Addr(),
		Password: c.Password,
		DB:       c.Database,
	}

	if c.Server.Timeout > 0 {
		opt.DialTimeout = c.Server.Timeout
		opt.ReadTimeout = c.Server.Timeout
		opt.WriteTimeout = c.Server.Timeout
	}

	if c.Server.TLS {
		opt.TLSConfig = &tls.Config{
			ServerName: c.Server.Host,
			MinVersion: tls.VersionTLS12,
		}
	}

	if name := c.LibOptions[LibOptClientName]; name != "" {
		opt.OnConnect = func(ctx context.Context, cn *goRedis.Conn) error {
			return cn.ClientSetName(ctx, name).Err()
		}
	}

	return opt
}

func (c Config) connectTimeout() time.Duration {
	if c.Server.Timeout > 0 {
		return c.Server.Timeout
	}

	return DefaultConnectTimeout
}

// GetResource returns live connection of resource id, connecting on first use.
// Following calls return the same handle until configuration of the resource changes.
func (m *Manager) GetResource(ctx context.Context, id string) (*Conn, error) {
	e, ok := m.resources[id]
	if !ok {
		return nil, notFound(id)
	}

	if e.conn != nil && !e.conn.Closed() {
		return e.conn, nil
	}

	conn, err := m.connect(ctx, id, e.config)
	if err != nil {
		return nil, err
	}
	e.conn = conn
	e.version = ""

	return conn, nil
}

// connect dials (or takes from pool) a client for cfg and verifies it with PING
func (m *Manager) connect(ctx context.Context, id string, cfg Config) (*Conn, error) {
	serializer, err := NewSerializer(cfg.serializerName())
	if err != nil {
		return nil, err
	}

	timer := monitoring.Report().Timer(monitoring.MetricConnectTime)
	defer timer.Done()

	opt := cfg.redisOptions()

	var (
		client  *goRedis.Client
		release func() error
		reused  bool
	)
	if cfg.PersistentID != "" {
		var key string
		client, key, reused = m.pool.acquire(cfg, opt, m.dial)
		release = func() error {
			return m.pool.release(key)
		}
	} else {
		client = m.dial(opt)
		release = client.Close
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		if releaseErr := release(); releaseErr != nil {
			monitoring.Log().Warn("redis client release error", zap.String("resource", id), zap.Error(releaseErr))
		}
		monitoring.Report().Inc(monitoring.MetricConnections + ";status:failed")
		monitoring.Log().Warn("redis connection failed", zap.String("resource", id),
			zap.String("server", cfg.Server.String()), zap.Error(err))
		return nil, connectionError(err, "resource %q: handshake with %s", id, cfg.Server.String())
	}

	status := "dialed"
	if reused {
		status = "reused"
	}
	monitoring.Report().Inc(monitoring.MetricConnections + ";status:" + status)
	monitoring.Report().Gauge(monitoring.MetricActive, 1)
	monitoring.Log().Info("redis resource connected", zap.String("resource", id),
		zap.String("server", cfg.Server.String()), zap.String("persistent_id", cfg.PersistentID),
		zap.Int("database", cfg.Database), zap.Bool("reused", reused))

	return &Conn{
		client:       client,
		persistentID: cfg.PersistentID,
		serializer:   serializer,
		prefix:       cfg.LibOptions[LibOptPrefix],
		release:      release,
	}, nil
}
