package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Controller ControllerConfig `json:"controller"`
	Polling    PollingConfig    `json:"polling"`
	Render     RenderConfig     `json:"render"`
	Display    DisplayConfig    `json:"display"`
	Redis      RedisConfig      `json:"redis"`
	GeoIP      GeoIPConfig      `json:"geoip"`
	Alarms     AlarmsConfig     `json:"alarms"`
	Discord    DiscordConfig    `json:"discord"`
	Logging    LoggingConfig    `json:"logging"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// ControllerConfig points at the OpenDaylight RESTCONF endpoint
type ControllerConfig struct {
	BaseURL    string `json:"base_url"`
	TopologyID string `json:"topology_id"`
	Timeout    int    `json:"timeout_seconds"`
}

type PollingConfig struct {
	RefreshInterval     int `json:"refresh_interval_seconds"` // 0 = refresh on demand only
	HealthCheckInterval int `json:"health_check_interval_seconds"`
}

type RenderConfig struct {
	Title                 string `json:"title"`
	ContainerID           string `json:"container_id"`
	StopOnMissingChannels bool   `json:"stop_on_missing_channels"`
}

type DisplayConfig struct {
	TTL int `json:"ttl_seconds"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
	UseTLS   bool   `json:"use_tls"`
}

type GeoIPConfig struct {
	DBPath      string `json:"db_path"`
	APIFallback bool   `json:"api_fallback"`
}

type AlarmsConfig struct {
	Enabled     bool   `json:"enabled"`
	HistorySize int    `json:"history_size"`
	WebhookURL  string `json:"webhook_url"`
}

type DiscordConfig struct {
	Token     string `json:"token"`
	ChannelID string `json:"channel_id"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "console"
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Controller: ControllerConfig{
			BaseURL:    "http://localhost:8181",
			TopologyID: "usc",
			Timeout:    10,
		},
		Polling: PollingConfig{
			RefreshInterval:     0,
			HealthCheckInterval: 30,
		},
		Render: RenderConfig{
			Title:       "USC",
			ContainerID: "channelPanel",
		},
		Display: DisplayConfig{
			TTL: 3600,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			DB:      0,
			Enabled: false,
		},
		Alarms: AlarmsConfig{
			Enabled:     true,
			HistorySize: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig layers defaults, the JSON config file, the environment and the
// command line, in that order.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

func Load(args []string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := Default()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/config.json"
	}

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", configPath, err)
		}
	}

	loadEnv(cfg)

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var serverPort int
	var serverHost, controllerURL string

	fs.IntVar(&serverPort, "port", 0, "Server port")
	fs.StringVar(&serverHost, "host", "", "Server host")
	fs.StringVar(&controllerURL, "controller", "", "RESTCONF base URL of the controller")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if isFlagPassed(fs, "port") {
		cfg.Server.Port = serverPort
	}
	if isFlagPassed(fs, "host") {
		cfg.Server.Host = serverHost
	}
	if isFlagPassed(fs, "controller") {
		cfg.Controller.BaseURL = controllerURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func loadEnv(cfg *Config) {
	// Server configuration
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = p
		}
	}
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Server.AllowedOrigins = parts
	}

	// Controller configuration
	if val := os.Getenv("CONTROLLER_URL"); val != "" {
		cfg.Controller.BaseURL = val
	}
	if val := os.Getenv("CONTROLLER_TOPOLOGY_ID"); val != "" {
		cfg.Controller.TopologyID = val
	}
	if val := os.Getenv("CONTROLLER_TIMEOUT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Controller.Timeout = p
		}
	}

	// Polling configuration
	if val := os.Getenv("REFRESH_INTERVAL"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Polling.RefreshInterval = p
		}
	}
	if val := os.Getenv("HEALTH_CHECK_INTERVAL"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Polling.HealthCheckInterval = p
		}
	}

	// Render configuration
	if val := os.Getenv("RENDER_TITLE"); val != "" {
		cfg.Render.Title = val
	}
	if val := os.Getenv("RENDER_STOP_ON_MISSING_CHANNELS"); val != "" {
		cfg.Render.StopOnMissingChannels = parseBool(val)
	}

	if val := os.Getenv("DISPLAY_TTL"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Display.TTL = p
		}
	}

	// Redis configuration
	if val := os.Getenv("REDIS_ADDRESS"); val != "" {
		cfg.Redis.Address = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = p
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		cfg.Redis.Enabled = parseBool(val)
	}
	if val := os.Getenv("REDIS_USE_TLS"); val != "" {
		cfg.Redis.UseTLS = parseBool(val)
	}

	// GeoIP configuration
	if val := os.Getenv("GEOIP_DB_PATH"); val != "" {
		cfg.GeoIP.DBPath = val
	}
	if val := os.Getenv("GEOIP_API_FALLBACK"); val != "" {
		cfg.GeoIP.APIFallback = parseBool(val)
	}

	// Alarm notifications
	if val := os.Getenv("ALARMS_ENABLED"); val != "" {
		cfg.Alarms.Enabled = parseBool(val)
	}
	if val := os.Getenv("ALARMS_HISTORY_SIZE"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Alarms.HistorySize = p
		}
	}
	if val := os.Getenv("ALARMS_WEBHOOK_URL"); val != "" {
		cfg.Alarms.WebhookURL = val
	}
	if val := os.Getenv("DISCORD_BOT_TOKEN"); val != "" {
		cfg.Discord.Token = val
	}
	if val := os.Getenv("DISCORD_CHANNEL_ID"); val != "" {
		cfg.Discord.ChannelID = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
}

func parseBool(val string) bool {
	return val == "true" || val == "1"
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Controller.BaseURL == "" {
		return fmt.Errorf("controller base_url is required")
	}
	u, err := url.Parse(c.Controller.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid controller base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("controller base_url must be http or https, got %q", c.Controller.BaseURL)
	}
	if pointsAtSelf(u, c.Server.Port) {
		return fmt.Errorf("controller base_url %q is this service's own address", c.Controller.BaseURL)
	}
	if c.Polling.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval_seconds must not be negative")
	}
	return nil
}

// pointsAtSelf reports whether u is a loopback address on the server port
func pointsAtSelf(u *url.URL, serverPort int) bool {
	host := u.Hostname()
	switch {
	case host == "", host == "localhost", host == "::1", host == "0.0.0.0":
	case strings.HasPrefix(host, "127."):
	default:
		return false
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return port == strconv.Itoa(serverPort)
}

// Helper methods for duration conversion
func (c *Config) ControllerTimeoutDuration() time.Duration {
	return time.Duration(c.Controller.Timeout) * time.Second
}

func (c *Config) RefreshIntervalDuration() time.Duration {
	return time.Duration(c.Polling.RefreshInterval) * time.Second
}

func (c *Config) HealthCheckIntervalDuration() time.Duration {
	return time.Duration(c.Polling.HealthCheckInterval) * time.Second
}

func (c *Config) DisplayTTLDuration() time.Duration {
	return time.Duration(c.Display.TTL) * time.Second
}
