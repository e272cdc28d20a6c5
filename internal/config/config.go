package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Notify    NotifyConfig    `yaml:"notify"`
	History   HistoryConfig   `yaml:"history"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AuthToken, when set, is required as a bearer token on every HTTP and
	// WebSocket request.
	AuthToken string `yaml:"auth_token"`
}

type TelemetryConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	// SimProcess is the simulator process name checked before connecting.
	// Empty disables the check.
	SimProcess string `yaml:"sim_process"`
	// ConnectOnStart attempts a telemetry connection at startup instead of
	// waiting for a connect_iracing tool call.
	ConnectOnStart bool `yaml:"connect_on_start"`
	// NearbyCars is how many surrounding cars each position sample carries.
	NearbyCars int `yaml:"nearby_cars"`
}

type NotifyConfig struct {
	// SendTimeout bounds how long one session's notification delivery may
	// take before it is abandoned.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type HistoryConfig struct {
	// Path to the sqlite pass history. Empty keeps history in memory only.
	Path string `yaml:"path"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			PollInterval: time.Second,
			SimProcess:   "iRacingSim",
			NearbyCars:   6,
		},
		Notify: NotifyConfig{
			SendTimeout: 2 * time.Second,
		},
	}
}

// Load reads the YAML config at path over the defaults, then applies
// environment overrides. A missing file is not an error: the defaults plus
// environment are a complete configuration.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "read config")
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	cfg.applyEnv()

	if cfg.Telemetry.PollInterval <= 0 {
		cfg.Telemetry.PollInterval = time.Second
	}
	if cfg.Notify.SendTimeout <= 0 {
		cfg.Notify.SendTimeout = 2 * time.Second
	}
	if cfg.Telemetry.NearbyCars <= 0 {
		cfg.Telemetry.NearbyCars = 6
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values. Loaded from a
// .env file by the entrypoint when present.
func (c *Config) applyEnv() {
	if v := os.Getenv("IRACING_MCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("IRACING_MCP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("IRACING_MCP_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("IRACING_MCP_HISTORY"); v != "" {
		c.History.Path = v
	}
}
