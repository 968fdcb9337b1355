package resource

import (
	"strings"

	"github.com/spf13/cast"
)

// Keys recognized in resource maps. Any other key is ignored.
const (
	KeyServer       = "server"
	KeyPassword     = "password"
	KeyPersistentID = "persistent_id"
	KeyDatabase     = "database"
	KeyVersion      = "version"
	KeySerializer   = "serializer"
	KeyLibOptions   = "lib_options"
)

// Lib options applied to the connection handle
const (
	LibOptSerializer = "serializer"
	LibOptPrefix     = "prefix"
	LibOptClientName = "client_name"
)

// Options is the typed form of a resource configuration.
// Server accepts every form understood by ParseServer.
type Options struct {
	Server       interface{}
	Password     string
	PersistentID string
	Database     int
	Version      string
	Serializer   string
	LibOptions   map[string]string
}

// Config is a normalized resource configuration
type Config struct {
	Server       Server
	Password     string
	PersistentID string
	Database     int
	Version      string
	Serializer   string
	LibOptions   map[string]string
}

// serializerName returns serializer selected by top level option or lib option
func (c Config) serializerName() string {
	if c.Serializer != "" {
		return c.Serializer
	}
	if name := c.LibOptions[LibOptSerializer]; name != "" {
		return name
	}

	return SerializerNone
}

func (c Config) clone() Config {
	out := c
	if c.LibOptions != nil {
		out.LibOptions = make(map[string]string, len(c.LibOptions))
		for k, v := range c.LibOptions {
			out.LibOptions[k] = v
		}
	}

	return out
}

// ParseConfig normalizes raw resource configuration: a server value alone
// (see ParseServer), a map with "server" key and sibling options, a structured
// server map carrying options next to host/port, or Options
func ParseConfig(raw interface{}) (Config, error) {
	switch v := raw.(type) {
	case Options:
		return configFromOptions(v)
	case *Options:
		if v == nil {
			return Config{}, invalidConfig("resource options are nil")
		}
		return configFromOptions(*v)
	case map[string]string:
		return configFromMap(toInterfaceMap(v))
	case map[string]interface{}, map[interface{}]interface{}:
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return Config{}, invalidConfigCause(err, "resource map")
		}
		return configFromMap(m)
	default:
		spec, err := normalizeServer(raw)
		if err != nil {
			return Config{}, err
		}
		return configFromSpec(spec), nil
	}
}

func configFromSpec(spec serverSpec) Config {
	return Config{
		Server:   spec.server,
		Password: spec.password,
		Database: spec.database,
	}
}

func configFromOptions(o Options) (Config, error) {
	server := o.Server
	if server == nil {
		server = DefaultServer()
	}

	spec, err := normalizeServer(server)
	if err != nil {
		return Config{}, err
	}

	cfg := configFromSpec(spec)
	// zero values of typed options mean unset
	if o.Password != "" {
		cfg.Password = o.Password
	}
	if o.Database != 0 {
		cfg.Database = o.Database
	}
	cfg.PersistentID = o.PersistentID
	cfg.Version = o.Version
	cfg.Serializer = o.Serializer
	if len(o.LibOptions) > 0 {
		cfg.LibOptions = make(map[string]string, len(o.LibOptions))
		for k, v := range o.LibOptions {
			cfg.LibOptions[k] = v
		}
	}

	return cfg, validateConfig(cfg)
}

func configFromMap(m map[string]interface{}) (Config, error) {
	var (
		spec serverSpec
		err  error
	)

	if server, ok := m[KeyServer]; ok {
		spec, err = normalizeServer(server)
	} else if _, ok := m["host"]; ok {
		// structured server map, options live next to host/port
		spec, err = parseServerMap(m)
	} else {
		spec, err = normalizeServer(DefaultServer())
	}
	if err != nil {
		return Config{}, err
	}

	cfg := configFromSpec(spec)

	if v, ok := m[KeyPassword]; ok && v != nil {
		password, err := cast.ToStringE(v)
		if err != nil {
			return Config{}, invalidConfigCause(err, "password")
		}
		// present key wins over uri credentials, empty value included
		cfg.Password = password
	}

	if v, ok := m[KeyDatabase]; ok && v != nil {
		cfg.Database, err = cast.ToIntE(v)
		if err != nil {
			return Config{}, invalidConfigCause(err, "database")
		}
	}

	if cfg.PersistentID, err = optionalString(m, KeyPersistentID); err != nil {
		return Config{}, err
	}
	if cfg.Version, err = optionalString(m, KeyVersion); err != nil {
		return Config{}, err
	}
	if cfg.Serializer, err = optionalString(m, KeySerializer); err != nil {
		return Config{}, err
	}

	if v, ok := m[KeyLibOptions]; ok && v != nil {
		cfg.LibOptions, err = cast.ToStringMapStringE(v)
		if err != nil {
			return Config{}, invalidConfigCause(err, "lib_options")
		}
	}

	return cfg, validateConfig(cfg)
}

func optionalString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return "", invalidConfigCause(err, "%s", key)
	}

	return strings.TrimSpace(s), nil
}

func validateConfig(cfg Config) error {
	if cfg.Database < 0 {
		return invalidConfig("database %d is negative", cfg.Database)
	}

	return validateLibOptions(cfg.Serializer, cfg.LibOptions)
}

func validateLibOptions(serializer string, libOptions map[string]string) error {
	if serializer != "" {
		if _, err := NewSerializer(serializer); err != nil {
			return err
		}
	}

	if name := libOptions[LibOptSerializer]; name != "" {
		if _, err := NewSerializer(name); err != nil {
			return err
		}
	}

	return nil
}
