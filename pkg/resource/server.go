package resource

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	goRedis "github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const (
	// DefaultHost is used when server configuration omits host
	DefaultHost = "localhost"
	// DefaultPort is used when server configuration omits port
	DefaultPort = 6379
)

// Server describes connection target of a resource
type Server struct {
	Host    string        `json:"host" yaml:"host"`
	Port    int           `json:"port" yaml:"port"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`
	TLS     bool          `json:"tls,omitempty" yaml:"tls"`
}

// DefaultServer returns localhost:6379
func DefaultServer() Server {
	return Server{Host: DefaultHost, Port: DefaultPort}
}

// IsSocket reports whether Host is a unix socket path
func (s Server) IsSocket() bool {
	return strings.HasPrefix(s.Host, "/")
}

// Addr returns address in form accepted by go-redis
func (s Server) Addr() string {
	if s.IsSocket() {
		return s.Host
	}

	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s Server) network() string {
	if s.IsSocket() {
		return "unix"
	}

	return "tcp"
}

func (s Server) String() string {
	scheme := "redis"
	if s.TLS {
		scheme = "rediss"
	}
	if s.IsSocket() {
		scheme = "unix"
	}

	return fmt.Sprintf("%s://%s", scheme, s.Addr())
}

// serverSpec is a normalized server value together with credentials found next to it
type serverSpec struct {
	server      Server
	password    string
	database    int
	hasDatabase bool
}

// ParseServer normalizes any accepted server form: URI string, "host:port" string,
// socket path, map with host/port/timeout, [host, port, timeout] list or Server value
func ParseServer(raw interface{}) (Server, error) {
	spec, err := normalizeServer(raw)
	return spec.server, err
}

func normalizeServer(raw interface{}) (serverSpec, error) {
	switch v := raw.(type) {
	case nil:
		return serverSpec{}, invalidConfig("server is required")
	case Server:
		return validateServer(serverSpec{server: v})
	case *Server:
		if v == nil {
			return serverSpec{}, invalidConfig("server is required")
		}
		return validateServer(serverSpec{server: *v})
	case string:
		return parseServerString(v)
	case []interface{}:
		return parseServerList(v)
	case []string:
		list := make([]interface{}, len(v))
		for i := range v {
			list[i] = v[i]
		}
		return parseServerList(list)
	case map[string]string:
		return parseServerMap(toInterfaceMap(v))
	case map[string]interface{}, map[interface{}]interface{}:
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return serverSpec{}, invalidConfigCause(err, "server map")
		}
		return parseServerMap(m)
	default:
		return serverSpec{}, invalidConfig("unsupported server value of type %T", raw)
	}
}

func parseServerString(raw string) (serverSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return serverSpec{}, invalidConfig("server is empty")
	}

	if strings.Contains(s, "://") {
		return parseServerURI(s)
	}

	if strings.HasPrefix(s, "/") {
		return validateServer(serverSpec{server: Server{Host: s}})
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		// no port part
		return validateServer(serverSpec{server: Server{Host: s}})
	}

	spec := serverSpec{server: Server{Host: host}}
	if port != "" {
		spec.server.Port, err = strconv.Atoi(port)
		if err != nil {
			return serverSpec{}, invalidConfig("invalid port in %q", raw)
		}
	}

	return validateServer(spec)
}

func parseServerURI(uri string) (serverSpec, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return serverSpec{}, invalidConfigCause(uriCause(err), "server uri %q", redactURI(uri))
	}

	switch u.Scheme {
	case "redis", "rediss", "unix":
		return parseRedisURI(uri)
	default:
		return parseGenericURI(uri, u)
	}
}

// parseRedisURI applies go-redis URL rules, including its query parameters.
func parseRedisURI(uri string) (serverSpec, error) {
	opt, err := goRedis.ParseURL(uri)
	if err != nil {
		return serverSpec{}, invalidConfigCause(uriCause(err), "server uri %q", redactURI(uri))
	}

	spec := serverSpec{
		password:    opt.Password,
		database:    opt.DB,
		hasDatabase: opt.DB != 0,
	}
	if opt.DialTimeout > 0 {
		spec.server.Timeout = opt.DialTimeout
	}

	if opt.Network == "unix" {
		spec.server.Host = opt.Addr
		return validateServer(spec)
	}

	host, port, err := net.SplitHostPort(opt.Addr)
	if err != nil {
		return serverSpec{}, invalidConfigCause(err, "server uri %q", redactURI(uri))
	}
	spec.server.Host = host
	spec.server.TLS = opt.TLSConfig != nil
	spec.server.Port, err = strconv.Atoi(port)
	if err != nil {
		return serverSpec{}, invalidConfig("invalid port in server uri %q", redactURI(uri))
	}

	return validateServer(spec)
}

// parseGenericURI reads scheme://[user[:password]@]host[:port][/db] for schemes go-redis does not know.
func parseGenericURI(uri string, u *url.URL) (serverSpec, error) {
	spec := serverSpec{server: Server{Host: u.Hostname()}}
	if u.Host == "" {
		return serverSpec{}, invalidConfig("server uri %q has no host", redactURI(uri))
	}
	if password, ok := u.User.Password(); ok {
		spec.password = password
	}

	if port := u.Port(); port != "" {
		var err error
		spec.server.Port, err = strconv.Atoi(port)
		if err != nil {
			return serverSpec{}, invalidConfig("invalid port in server uri %q", redactURI(uri))
		}
	}

	if db := strings.Trim(u.Path, "/"); db != "" {
		database, err := strconv.Atoi(db)
		if err != nil {
			return serverSpec{}, invalidConfig("invalid database in server uri %q", redactURI(uri))
		}
		spec.database = database
		spec.hasDatabase = database != 0
	}

	return validateServer(spec)
}

// uriCause drops the raw URL from net/url errors so credentials do not leak into messages.
func uriCause(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}

	return err
}

func parseServerList(list []interface{}) (serverSpec, error) {
	if len(list) == 0 || len(list) > 3 {
		return serverSpec{}, invalidConfig("server list must be [host, port, timeout], got %d elements", len(list))
	}

	m := map[string]interface{}{"host": list[0]}
	if len(list) > 1 {
		m["port"] = list[1]
	}
	if len(list) > 2 {
		m["timeout"] = list[2]
	}

	return parseServerMap(m)
}

func parseServerMap(m map[string]interface{}) (serverSpec, error) {
	var spec serverSpec

	host, err := cast.ToStringE(m["host"])
	if err != nil || strings.TrimSpace(host) == "" {
		return serverSpec{}, invalidConfig("server map requires host")
	}
	spec.server.Host = strings.TrimSpace(host)

	if v, ok := m["port"]; ok && v != nil && v != "" {
		spec.server.Port, err = cast.ToIntE(v)
		if err != nil {
			return serverSpec{}, invalidConfigCause(err, "server port")
		}
	}

	if v, ok := m["timeout"]; ok && v != nil && v != "" {
		spec.server.Timeout, err = toTimeout(v)
		if err != nil {
			return serverSpec{}, invalidConfigCause(err, "server timeout")
		}
	}

	if v, ok := m["tls"]; ok {
		spec.server.TLS, err = cast.ToBoolE(v)
		if err != nil {
			return serverSpec{}, invalidConfigCause(err, "server tls")
		}
	}

	if v, ok := m["password"]; ok && v != nil {
		spec.password, err = cast.ToStringE(v)
		if err != nil {
			return serverSpec{}, invalidConfigCause(err, "server password")
		}
	}

	if v, ok := m["database"]; ok && v != nil {
		spec.database, err = cast.ToIntE(v)
		if err != nil {
			return serverSpec{}, invalidConfigCause(err, "server database")
		}
		spec.hasDatabase = true
	}

	return validateServer(spec)
}

func validateServer(spec serverSpec) (serverSpec, error) {
	if spec.server.Host == "" {
		return serverSpec{}, invalidConfig("server host is empty")
	}

	if spec.server.IsSocket() {
		spec.server.Port = 0
	} else {
		if spec.server.Port == 0 {
			spec.server.Port = DefaultPort
		}
		if spec.server.Port < 1 || spec.server.Port > 65535 {
			return serverSpec{}, invalidConfig("server port %d out of range", spec.server.Port)
		}
	}

	if spec.server.Timeout < 0 {
		return serverSpec{}, invalidConfig("server timeout %s is negative", spec.server.Timeout)
	}

	if spec.database < 0 {
		return serverSpec{}, invalidConfig("database %d is negative", spec.database)
	}

	return spec, nil
}

// toTimeout reads plain numbers as seconds and strings with units as Go durations
func toTimeout(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		if strings.IndexFunc(t, isUnitRune) >= 0 {
			return cast.ToDurationE(t)
		}
	}

	seconds, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

func isUnitRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || r == 'µ'
}

// redactURI hides password part of uri in error messages
func toInterfaceMap(v map[string]string) map[string]interface{} {
	m := make(map[string]interface{}, len(v))
	for k, val := range v {
		m[k] = val
	}

	return m
}

func redactURI(uri string) string {
	schemeEnd := strings.Index(uri, "://")
	at := strings.LastIndex(uri, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return uri
	}

	return uri[:schemeEnd+3] + "***" + uri[at:]
}
