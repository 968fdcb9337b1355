package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"

	"github.com/aldor007/redisres/pkg/monitoring"
	"github.com/aldor007/redisres/pkg/resource"
)

const (
	// EnvHost names environment variable with default redis host
	EnvHost = "REDIS_HOST"
	// EnvPort names environment variable with default redis port
	EnvPort = "REDIS_PORT"
	// DefaultResource is id of resource created when configuration defines none
	DefaultResource = "default"
)

// monitoringKinds is list of accepted values of server.monitoring
var monitoringKinds = []string{"", "prometheus"}

// Config contains resource definitions and server settings
// How configuration file should be formatted see resources.yml in testdata
type Config struct {
	Resources map[string]interface{} `yaml:"resources"`
	Server    Server                 `yaml:"server"`
}

// Load reads config data from file
func (c *Config) Load(filePath string) error {
	data, err := ioutil.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "unable to load config file %s", filePath)
	}

	return c.load(data)
}

// LoadFromString parse configuration form string
func (c *Config) LoadFromString(data string) error {
	return c.load([]byte(data))
}

func (c *Config) load(data []byte) error {
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "unable to parse config")
	}

	if len(c.Resources) == 0 {
		server, err := EnvServer()
		if err != nil {
			return err
		}
		c.Resources = map[string]interface{}{DefaultResource: server}
	}

	return c.validate()
}

// IDs returns sorted resource ids
func (c *Config) IDs() []string {
	ids := make([]string, 0, len(c.Resources))
	for id := range c.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// Apply registers every configured resource in manager
func (c *Config) Apply(m *resource.Manager) error {
	for _, id := range c.IDs() {
		if err := m.SetResource(id, c.Resources[id]); err != nil {
			return errors.Wrapf(err, "resource %s", id)
		}
	}

	return nil
}

// RequestTimeout returns server request timeout as duration
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// EnvServer returns redis server described by REDIS_HOST and REDIS_PORT, falling back to localhost:6379
func EnvServer() (resource.Server, error) {
	host := os.Getenv(EnvHost)
	if host == "" {
		host = resource.DefaultHost
	}

	port := resource.DefaultPort
	if raw := os.Getenv(EnvPort); raw != "" {
		var err error
		port, err = cast.ToIntE(raw)
		if err != nil {
			return resource.Server{}, configInvalidError(fmt.Sprintf("%s=%q is not a port number", EnvPort, raw))
		}
	}

	server, err := resource.ParseServer(resource.Server{Host: host, Port: port})
	if err != nil {
		return resource.Server{}, configInvalidError(err.Error())
	}

	return server, nil
}

func configInvalidError(msg string) error {
	monitoring.Logs().Warnw(msg)
	return errors.New(msg)
}

func (c *Config) validateResources() error {
	for _, id := range c.IDs() {
		if id == "" {
			return configInvalidError("resource id can not be empty")
		}

		if _, err := resource.ParseConfig(c.Resources[id]); err != nil {
			return configInvalidError(fmt.Sprintf("resource %s has invalid configuration: %s", id, err))
		}
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "prod"
	}

	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}

	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 60
	}

	if c.Server.RequestTimeout < 0 {
		return configInvalidError("server requestTimeout can not be negative")
	}

	for _, kind := range monitoringKinds {
		if c.Server.Monitoring == kind {
			return nil
		}
	}

	return configInvalidError(fmt.Sprintf("server has invalid monitoring %s", c.Server.Monitoring))
}

func (c *Config) validate() error {
	if err := c.validateResources(); err != nil {
		return err
	}

	return c.validateServer()
}
