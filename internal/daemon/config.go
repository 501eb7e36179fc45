package daemon

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/mockwire/mockwire/mockfile"
)

// Config is the daemon's environment-driven configuration. Every
// field is read from the MOCKWIRED_ prefix, so the data port is
// MOCKWIRED_DATA_PORT and so on.
type Config struct {
	BindAddress string `envconfig:"BIND_ADDRESS" default:"0.0.0.0"`
	DataPort    int    `envconfig:"DATA_PORT" default:"4280"`
	AdminPort   int    `envconfig:"ADMIN_PORT" default:"4290"`

	MockFile string `envconfig:"MOCK_FILE" default:"mocks.yaml"`
	Profile  string `envconfig:"PROFILE" default:"default"`

	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	PrettyLogs bool   `envconfig:"PRETTY_LOGS" default:"false"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MOCKWIRED", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	return &cfg, nil
}

// NewForTesting returns a config bound to loopback ephemeral ports,
// serving the given mock file's default profile.
func NewForTesting(mockFile string) *Config {
	return &Config{
		BindAddress:     "127.0.0.1",
		DataPort:        0,
		AdminPort:       0,
		MockFile:        mockFile,
		Profile:         mockfile.DefaultProfile,
		LogLevel:        "debug",
		ShutdownTimeout: 2 * time.Second,
	}
}

// DataAddr returns the data-plane listen address.
func (c *Config) DataAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.DataPort)
}

// AdminAddr returns the admin-plane listen address.
func (c *Config) AdminAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddress, c.AdminPort)
}
