// Package resource configures Redis connections for a caching library and keeps
// one lazily created connection per resource id.
//
// Manager is not safe for concurrent use. Callers sharing a Manager between
// goroutines must serialize access themselves.
package resource

import (
	"net"
	"sort"
	"strconv"

	goRedis "github.com/go-redis/redis/v8"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aldor007/redisres/pkg/monitoring"
)

// Manager maps resource ids to their configuration and cached connection
type Manager struct {
	resources map[string]*entry
	pool      *Pool
	dial      Dialer
}

type entry struct {
	config  Config
	conn    *Conn
	version string // reported by server for current connection
}

// Option configures Manager
type Option func(*Manager)

// WithPool makes manager share persistent connections through p instead of SharedPool()
func WithPool(p *Pool) Option {
	return func(m *Manager) {
		m.pool = p
	}
}

// WithDialer replaces goRedis.NewClient used to create clients
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dial = d
	}
}

// NewManager creates empty resource manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		resources: make(map[string]*entry),
		pool:      sharedPool,
		dial:      goRedis.NewClient,
	}
	for _, o := range opts {
		o(m)
	}

	return m
}

// HasResource reports whether id is known
func (m *Manager) HasResource(id string) bool {
	_, ok := m.resources[id]
	return ok
}

// IDs returns sorted list of known resource ids
func (m *Manager) IDs() []string {
	ids := make([]string, 0, len(m.resources))
	for id := range m.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// SetResource creates or fully replaces resource id. raw is anything accepted by
// ParseConfig or an already connected *redis.Client which becomes the resource connection.
func (m *Manager) SetResource(id string, raw interface{}) error {
	if client, ok := raw.(*goRedis.Client); ok {
		return m.setClient(id, client)
	}

	cfg, err := ParseConfig(raw)
	if err != nil {
		return err
	}

	if e, ok := m.resources[id]; ok {
		m.invalidate(id, e)
	}
	m.resources[id] = &entry{config: cfg}
	monitoring.Log().Debug("redis resource set", zap.String("resource", id), zap.String("server", cfg.Server.String()),
		zap.String("persistent_id", cfg.PersistentID))

	return nil
}

func (m *Manager) setClient(id string, client *goRedis.Client) error {
	if client == nil {
		return invalidConfig("resource %q: redis client is nil", id)
	}

	opt := client.Options()
	cfg := Config{
		Password: opt.Password,
		Database: opt.DB,
		Server: Server{
			Host:    opt.Addr,
			Timeout: opt.DialTimeout,
			TLS:     opt.TLSConfig != nil,
		},
	}
	if opt.Network != "unix" {
		host, port, err := net.SplitHostPort(opt.Addr)
		if err == nil {
			cfg.Server.Host = host
			cfg.Server.Port, _ = strconv.Atoi(port)
		}
	}
	if cfg.Server.Host == "" {
		cfg.Server = DefaultServer()
	}

	if e, ok := m.resources[id]; ok {
		m.invalidate(id, e)
	}

	serializer, _ := NewSerializer(SerializerNone)
	m.resources[id] = &entry{
		config: cfg,
		conn:   &Conn{client: client, serializer: serializer},
	}
	monitoring.Report().Gauge(monitoring.MetricActive, 1)

	return nil
}

// SetServer replaces server of resource id, creating the resource with defaults when absent.
// Password and database already stored on the resource are kept; the ones embedded in raw
// are used only when the resource has none.
func (m *Manager) SetServer(id string, raw interface{}) error {
	spec, err := normalizeServer(raw)
	if err != nil {
		return err
	}

	e, ok := m.resources[id]
	if !ok {
		m.resources[id] = &entry{config: configFromSpec(spec)}
		return nil
	}

	m.invalidate(id, e)
	e.config.Server = spec.server
	if e.config.Password == "" {
		e.config.Password = spec.password
	}
	if spec.hasDatabase && e.config.Database == 0 {
		e.config.Database = spec.database
	}
	monitoring.Log().Debug("redis resource server changed", zap.String("resource", id),
		zap.String("server", spec.server.String()))

	return nil
}

// GetServer returns server of resource id
func (m *Manager) GetServer(id string) (Server, error) {
	e, ok := m.resources[id]
	if !ok {
		return Server{}, notFound(id)
	}

	return e.config.Server, nil
}

// GetConfig returns copy of normalized configuration of resource id
func (m *Manager) GetConfig(id string) (Config, error) {
	e, ok := m.resources[id]
	if !ok {
		return Config{}, notFound(id)
	}

	return e.config.clone(), nil
}

// GetPassword returns password of resource id, empty when none is set
func (m *Manager) GetPassword(id string) (string, error) {
	e, ok := m.resources[id]
	if !ok {
		return "", notFound(id)
	}

	return e.config.Password, nil
}

// SetPassword changes password of resource id
func (m *Manager) SetPassword(id, password string) error {
	e := m.entryOrDefault(id)
	if e.config.Password != password {
		m.invalidate(id, e)
		e.config.Password = password
	}

	return nil
}

// GetPersistentID returns persistent id of resource id, empty when none was recognized
func (m *Manager) GetPersistentID(id string) (string, error) {
	e, ok := m.resources[id]
	if !ok {
		return "", notFound(id)
	}

	return e.config.PersistentID, nil
}

// SetPersistentID changes persistent id of resource id
func (m *Manager) SetPersistentID(id, persistentID string) error {
	e := m.entryOrDefault(id)
	if e.config.PersistentID != persistentID {
		m.invalidate(id, e)
		e.config.PersistentID = persistentID
	}

	return nil
}

// GetDatabase returns database index of resource id
func (m *Manager) GetDatabase(id string) (int, error) {
	e, ok := m.resources[id]
	if !ok {
		return 0, notFound(id)
	}

	return e.config.Database, nil
}

// SetDatabase changes database index of resource id
func (m *Manager) SetDatabase(id string, database int) error {
	if database < 0 {
		return invalidConfig("database %d is negative", database)
	}

	e := m.entryOrDefault(id)
	if e.config.Database != database {
		m.invalidate(id, e)
		e.config.Database = database
	}

	return nil
}

// GetLibOptions returns copy of lib options of resource id
func (m *Manager) GetLibOptions(id string) (map[string]string, error) {
	e, ok := m.resources[id]
	if !ok {
		return nil, notFound(id)
	}

	return e.config.clone().LibOptions, nil
}

// GetLibOption returns single lib option, empty when unset
func (m *Manager) GetLibOption(id, key string) (string, error) {
	e, ok := m.resources[id]
	if !ok {
		return "", notFound(id)
	}

	return e.config.LibOptions[key], nil
}

// SetLibOptions replaces lib options of resource id
func (m *Manager) SetLibOptions(id string, options map[string]string) error {
	if err := validateLibOptions("", options); err != nil {
		return err
	}

	e := m.entryOrDefault(id)
	m.invalidate(id, e)
	e.config.LibOptions = make(map[string]string, len(options))
	for k, v := range options {
		e.config.LibOptions[k] = v
	}

	return nil
}

// SetLibOption sets single lib option of resource id
func (m *Manager) SetLibOption(id, key, value string) error {
	if err := validateLibOptions("", map[string]string{key: value}); err != nil {
		return err
	}

	e := m.entryOrDefault(id)
	if current, ok := e.config.LibOptions[key]; ok && current == value {
		return nil
	}

	m.invalidate(id, e)
	if e.config.LibOptions == nil {
		e.config.LibOptions = make(map[string]string)
	}
	e.config.LibOptions[key] = value

	return nil
}

// IsConnected reports whether resource id holds a live connection
func (m *Manager) IsConnected(id string) bool {
	e, ok := m.resources[id]
	return ok && e.conn != nil && !e.conn.Closed()
}

// RemoveResource forgets resource id and releases its connection
func (m *Manager) RemoveResource(id string) error {
	e, ok := m.resources[id]
	if !ok {
		return notFound(id)
	}

	delete(m.resources, id)
	return m.release(id, e)
}

// Close releases every connection and empties the manager
func (m *Manager) Close() error {
	var err error
	for _, id := range m.IDs() {
		err = multierr.Append(err, m.release(id, m.resources[id]))
		delete(m.resources, id)
	}

	return err
}

// entryOrDefault returns entry for id creating one pointing at localhost:6379
func (m *Manager) entryOrDefault(id string) *entry {
	e, ok := m.resources[id]
	if !ok {
		e = &entry{config: Config{Server: DefaultServer()}}
		m.resources[id] = e
	}

	return e
}

// invalidate drops cached connection after configuration change
func (m *Manager) invalidate(id string, e *entry) {
	connected := e.conn != nil
	if err := m.release(id, e); err != nil {
		monitoring.Log().Warn("redis resource release error", zap.String("resource", id), zap.Error(err))
	}

	if connected {
		monitoring.Report().Inc(monitoring.MetricInvalidations)
		monitoring.Log().Debug("redis resource connection invalidated", zap.String("resource", id))
	}
}

func (m *Manager) release(_ string, e *entry) error {
	e.version = ""
	if e.conn == nil {
		return nil
	}

	conn := e.conn
	e.conn = nil

	return conn.Close()
}
