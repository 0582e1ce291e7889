// Package config
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Stream   StreamConfig   `yaml:"stream"`
	Ticker   TickerConfig   `yaml:"ticker"`
	Notify   NotifyConfig   `yaml:"notify"`
	Calendar CalendarConfig `yaml:"calendar"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	SharedSecret   string `yaml:"shared_secret"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
}

type MQTTConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	StateTopic string `yaml:"state_topic"`
	RingTopic  string `yaml:"ring_topic"`
}

// StreamConfig configures the SSE status subscription. The adapter is
// disabled when BaseURL or Topic is empty.
type StreamConfig struct {
	BaseURL          string `yaml:"base_url"`
	Topic            string `yaml:"topic"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	ReadTimeoutMS    int    `yaml:"read_timeout_ms"`
	BackoffMS        int    `yaml:"backoff_ms"`
}

type TickerConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type NotifyConfig struct {
	TeamsWebhook string `yaml:"teams_webhook"`
	FlowURL      string `yaml:"flow_url"`
	NtfyURL      string `yaml:"ntfy_url"`
}

type CalendarConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"`
}

type DisplayConfig struct {
	Timezone string `yaml:"timezone"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from an optional file and applies environment
// variable overrides. A missing file is not an error; everything can be
// supplied through SIGN_* environment variables.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// env-only deployment
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8787,
			ReadTimeoutMS:  10000,
			WriteTimeoutMS: 10000,
		},
		MQTT: MQTTConfig{
			Host:       "127.0.0.1",
			Port:       1883,
			StateTopic: "office/sign/state",
			RingTopic:  "office/sign/ring",
		},
		Stream: StreamConfig{
			ConnectTimeoutMS: 5000,
			ReadTimeoutMS:    310000,
			BackoffMS:        5000,
		},
		Calendar: CalendarConfig{
			Path: "/user/calendar/",
		},
		Display: DisplayConfig{
			Timezone: "Europe/London",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate ensures the configuration is internally consistent
func (c *Config) Validate() error {
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt host is required")
	}
	if c.MQTT.StateTopic == "" || c.MQTT.RingTopic == "" {
		return fmt.Errorf("mqtt state_topic and ring_topic are required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Ticker.IntervalSeconds < 0 {
		return fmt.Errorf("ticker interval_seconds must not be negative")
	}
	if c.Display.Timezone != "" {
		if _, err := time.LoadLocation(c.Display.Timezone); err != nil {
			return fmt.Errorf("invalid display timezone %q: %w", c.Display.Timezone, err)
		}
	}
	return nil
}

// applyEnvOverrides checks for environment variables with SIGN_ prefix
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("SIGN_SERVER_HOST", &cfg.Server.Host)
	setInt("SIGN_SERVER_PORT", &cfg.Server.Port)
	setString("SIGN_SHARED_SECRET", &cfg.Server.SharedSecret)

	setString("SIGN_MQTT_HOST", &cfg.MQTT.Host)
	setInt("SIGN_MQTT_PORT", &cfg.MQTT.Port)
	setString("SIGN_TOPIC_STATE", &cfg.MQTT.StateTopic)
	setString("SIGN_TOPIC_RING", &cfg.MQTT.RingTopic)

	setString("SIGN_STREAM_URL", &cfg.Stream.BaseURL)
	setString("SIGN_STREAM_TOPIC", &cfg.Stream.Topic)

	setInt("SIGN_PUBLISH_INTERVAL", &cfg.Ticker.IntervalSeconds)

	setString("SIGN_TEAMS_WEBHOOK", &cfg.Notify.TeamsWebhook)
	setString("SIGN_FLOW_URL", &cfg.Notify.FlowURL)
	setString("SIGN_NTFY_URL", &cfg.Notify.NtfyURL)

	setString("SIGN_RAD_URL", &cfg.Calendar.URL)
	setString("SIGN_RAD_USER", &cfg.Calendar.Username)
	setString("SIGN_RAD_PASS", &cfg.Calendar.Password)
	setString("SIGN_RAD_PATH", &cfg.Calendar.Path)

	setString("SIGN_DISPLAY_TZ", &cfg.Display.Timezone)
	setString("SIGN_LOG_LEVEL", &cfg.Logging.Level)
	setString("SIGN_LOG_FORMAT", &cfg.Logging.Format)
}

// GetReadTimeout returns the read timeout as a duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// GetWriteTimeout returns the write timeout as a duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// BrokerURL returns the MQTT broker address in paho's URL form
func (m *MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}

func (s *StreamConfig) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutMS) * time.Millisecond
}

func (s *StreamConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s *StreamConfig) GetBackoff() time.Duration {
	return time.Duration(s.BackoffMS) * time.Millisecond
}

// Enabled reports whether the streaming subscription is configured.
func (s *StreamConfig) Enabled() bool {
	return s.BaseURL != "" && s.Topic != ""
}

// EndpointURL returns the full SSE endpoint for the configured topic.
func (s *StreamConfig) EndpointURL() string {
	return fmt.Sprintf("%s/%s/sse", strings.TrimRight(s.BaseURL, "/"), s.Topic)
}

func (t *TickerConfig) GetInterval() time.Duration {
	return time.Duration(t.IntervalSeconds) * time.Second
}

// Enabled reports whether the calendar proxy is configured.
func (c *CalendarConfig) Enabled() bool {
	return c.URL != ""
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	return slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(l.Level))
}
