// Package config loads homelink's configuration.
//
// Values are layered: built-in defaults, then an optional .env file, then
// an optional YAML file, then environment variables. The channel
// credentials normally come from the environment:
//
//	CHANNEL_ACCESS_TOKEN  LINE channel access token (required)
//	CHANNEL_SECRET        LINE channel secret (required)
//	PORT                  listen port, default 3000
//
// Other settings can be overridden with HOMELINK_* variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Line      LineConfig      `yaml:"line"`
	Device    DeviceConfig    `yaml:"device"`
	Templates TemplatesConfig `yaml:"templates"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host        string         `yaml:"host"`
	Port        int            `yaml:"port"`
	WebhookPath string         `yaml:"webhook_path"`
	Timeouts    TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig holds HTTP timeouts in seconds. Zero disables a timeout.
type TimeoutsConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

type LineConfig struct {
	ChannelAccessToken string `yaml:"channel_access_token"`
	ChannelSecret      string `yaml:"channel_secret"`
}

// DeviceConfig configures the device channel. Durations are in seconds.
type DeviceConfig struct {
	Path           string `yaml:"path"`
	MaxSessions    int    `yaml:"max_sessions"`
	MaxMessageSize int64  `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	// QueryTimeout bounds a chat command's wait for the device. Zero waits
	// until the device answers or the server stops.
	QueryTimeout int `yaml:"query_timeout"`
	// Advertise announces the channel on the LAN over mDNS.
	Advertise bool `yaml:"advertise"`
}

// TemplatesConfig points at replacement bubble documents. Empty paths use
// the bundled ones.
type TemplatesConfig struct {
	StatusPath string `yaml:"status_path"`
	AlertPath  string `yaml:"alert_path"`
}

type MCPConfig struct {
	Enabled     bool `yaml:"enabled"`
	ToolTimeout int  `yaml:"tool_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr
}

// Load builds the configuration. envFile and path are optional; a named
// .env file that does not exist is skipped, a named YAML file must exist.
// Variables already in the environment win over the .env file.
func Load(path, envFile string) (*Config, error) {
	cfg := defaultConfig()

	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil {
			return nil, err
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadEnvFile(name string) error {
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(name); err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "",
			Port:        3000,
			WebhookPath: "/callback",
			Timeouts: TimeoutsConfig{
				Read: 30,
				Idle: 120,
			},
		},
		Device: DeviceConfig{
			Path:           "/socket",
			MaxSessions:    4,
			MaxMessageSize: 64 * 1024,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MCP: MCPConfig{
			ToolTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CHANNEL_ACCESS_TOKEN"); v != "" {
		cfg.Line.ChannelAccessToken = v
	}
	if v := os.Getenv("CHANNEL_SECRET"); v != "" {
		cfg.Line.ChannelSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("HOMELINK_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("HOMELINK_WEBHOOK_PATH"); v != "" {
		cfg.Server.WebhookPath = v
	}
	if v := os.Getenv("HOMELINK_SOCKET_PATH"); v != "" {
		cfg.Device.Path = v
	}
	if v := os.Getenv("HOMELINK_QUERY_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOMELINK_QUERY_TIMEOUT: %w", err)
		}
		cfg.Device.QueryTimeout = secs
	}
	if v := os.Getenv("HOMELINK_ADVERTISE"); v != "" {
		advertise, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HOMELINK_ADVERTISE: %w", err)
		}
		cfg.Device.Advertise = advertise
	}
	if v := os.Getenv("HOMELINK_STATUS_TEMPLATE"); v != "" {
		cfg.Templates.StatusPath = v
	}
	if v := os.Getenv("HOMELINK_ALERT_TEMPLATE"); v != "" {
		cfg.Templates.AlertPath = v
	}
	if v := os.Getenv("HOMELINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HOMELINK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Line.ChannelAccessToken == "" {
		errs = append(errs, "line.channel_access_token is required (set CHANNEL_ACCESS_TOKEN)")
	}
	if c.Line.ChannelSecret == "" {
		errs = append(errs, "line.channel_secret is required (set CHANNEL_SECRET)")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		errs = append(errs, "server.webhook_path must start with /")
	}
	if !strings.HasPrefix(c.Device.Path, "/") {
		errs = append(errs, "device.path must start with /")
	}
	if c.Device.Path == c.Server.WebhookPath || c.Device.Path == "/health" {
		errs = append(errs, "device.path collides with another route")
	}

	if c.Device.MaxSessions < 1 {
		errs = append(errs, "device.max_sessions must be at least 1")
	}
	if c.Device.QueryTimeout < 0 {
		errs = append(errs, "device.query_timeout must not be negative")
	}
	if c.Device.PingInterval > 0 && c.Device.PongTimeout <= 0 {
		errs = append(errs, "device.pong_timeout is required when ping_interval is set")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) GetReadTimeout() time.Duration {
	return seconds(c.Server.Timeouts.Read)
}

func (c *Config) GetWriteTimeout() time.Duration {
	return seconds(c.Server.Timeouts.Write)
}

func (c *Config) GetIdleTimeout() time.Duration {
	return seconds(c.Server.Timeouts.Idle)
}

func (c *Config) GetQueryTimeout() time.Duration {
	return seconds(c.Device.QueryTimeout)
}

func (c *Config) GetPingInterval() time.Duration {
	return seconds(c.Device.PingInterval)
}

func (c *Config) GetPongTimeout() time.Duration {
	return seconds(c.Device.PongTimeout)
}

func (c *Config) GetToolTimeout() time.Duration {
	return seconds(c.MCP.ToolTimeout)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
