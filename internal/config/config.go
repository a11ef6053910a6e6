package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	DB      DatabaseConfig
	Logging LoggingConfig
	Push    PushConfig
	Fanout  FanoutConfig
	Events  EventsConfig
	Tracing TracingConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	Debug     bool
	APIKey    string
	RateLimit int // requests per second, global
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type PushConfig struct {
	Provider     string // "mock" or "fcm"
	FCMServerKey string
	FCMURL       string
	Timeout      time.Duration
}

type FanoutConfig struct {
	Workers          int // concurrent sends within one run
	Dispatchers      int // concurrent fan-out runs
	SendTimeout      time.Duration
	ShelterSearchKm  float64
	DispatchOnCreate bool // fan out PENDING alerts at creation instead of on verification
}

type EventsConfig struct {
	BufferSize   int
	KafkaBrokers []string
	KafkaTopic   string
}

type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	SampleRatio float64
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			Debug:     getEnvBool("DEBUG", false),
			APIKey:    getEnv("API_KEY", ""),
			RateLimit: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/shelter-alerts.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Push: PushConfig{
			Provider:     strings.ToLower(getEnv("PUSH_PROVIDER", "mock")),
			FCMServerKey: getEnv("FCM_SERVER_KEY", ""),
			FCMURL:       getEnv("FCM_URL", "https://fcm.googleapis.com/fcm/send"),
			Timeout:      getEnvDuration("PUSH_TIMEOUT", 10*time.Second),
		},
		Fanout: FanoutConfig{
			Workers:          getEnvInt("FANOUT_WORKERS", 8),
			Dispatchers:      getEnvInt("FANOUT_DISPATCHERS", 2),
			SendTimeout:      getEnvDuration("FANOUT_SEND_TIMEOUT", 10*time.Second),
			ShelterSearchKm:  getEnvFloat("FANOUT_SHELTER_SEARCH_KM", 10),
			DispatchOnCreate: getEnvBool("FANOUT_ON_PENDING", false),
		},
		Events: EventsConfig{
			BufferSize:   getEnvInt("EVENTS_BUFFER_SIZE", 100),
			KafkaBrokers: getEnvList("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "shelter-alerts.events"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Exporter:    getEnv("TRACING_EXPORTER", "stdout"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 1),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Push.Provider != "mock" && c.Push.Provider != "fcm" {
		return fmt.Errorf("invalid push provider: %s", c.Push.Provider)
	}
	if c.Push.Timeout <= 0 || c.Fanout.SendTimeout <= 0 {
		return fmt.Errorf("push timeouts must be positive")
	}

	if c.Fanout.Workers < 1 || c.Fanout.Dispatchers < 1 {
		return fmt.Errorf("fanout workers and dispatchers must be at least 1")
	}
	if c.Fanout.ShelterSearchKm <= 0 {
		return fmt.Errorf("shelter search radius must be positive")
	}

	if c.Events.BufferSize < 1 {
		return fmt.Errorf("events buffer size must be at least 1")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be within [0, 1]")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
