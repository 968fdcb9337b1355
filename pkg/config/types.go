package config

// Server configures diagnostics HTTP server and ambient services
type Server struct {
	LogLevel       string `yaml:"logLevel"`
	AccessLog      bool   `yaml:"accessLogs"`
	Listen         string `yaml:"listen"`
	Monitoring     string `yaml:"monitoring"`
	RequestTimeout int    `yaml:"requestTimeout"` // seconds
}
