// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // ALERT_TIMEZONE must resolve in minimal containers.

	"github.com/joho/godotenv"
)

// Mail drivers.
const (
	MailDriverSMTP  = "smtp"
	MailDriverKafka = "kafka"
	MailDriverLog   = "log"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL   string
	RedisURL      string // empty selects the in-process cache
	BearerToken   string
	Port          string
	LogLevel      string
	LogFormat     string
	RunMigrations bool

	WeatherAPIURL  string // empty uses the public Open-Meteo endpoint
	WeatherTimeout time.Duration

	BatchWorkers int
	BatchTimeout time.Duration

	MailDriver   string
	MailTimeout  time.Duration
	MailFrom     string
	MailFromName string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	KafkaBrokers   []string
	KafkaMailTopic string

	// AlertSchedule is the daily "HH:MM" run time in AlertLocation.
	AlertSchedule   string
	AlertLocation   *time.Location
	ShutdownTimeout time.Duration
}

// Load reads a .env file when present, then the environment, applying defaults where unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		BearerToken:    os.Getenv("BEARER_TOKEN"),
		Port:           envOrDefault("PORT", "8080"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		LogFormat:      envOrDefault("LOG_FORMAT", "json"),
		WeatherAPIURL:  os.Getenv("WEATHER_API_URL"),
		MailFrom:       os.Getenv("MAIL_FROM"),
		MailFromName:   envOrDefault("MAIL_FROM_NAME", "Weather Alerts"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		KafkaBrokers:   parseList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaMailTopic: envOrDefault("KAFKA_MAIL_TOPIC", "weather-alert-emails"),
		AlertSchedule:  envOrDefault("ALERT_SCHEDULE", "06:00"),
	}

	var err error
	if cfg.RunMigrations, err = parseBool("RUN_MIGRATIONS", true); err != nil {
		return nil, err
	}
	if cfg.WeatherTimeout, err = parseDuration("WEATHER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchTimeout, err = parseDuration("BATCH_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MailTimeout, err = parseDuration("MAIL_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchWorkers, err = parsePositiveInt("BATCH_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = parsePositiveInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	if _, err := time.Parse("15:04", cfg.AlertSchedule); err != nil {
		return nil, fmt.Errorf("invalid ALERT_SCHEDULE %q: want HH:MM", cfg.AlertSchedule)
	}
	tz := envOrDefault("ALERT_TIMEZONE", "Asia/Manila")
	if cfg.AlertLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid ALERT_TIMEZONE %q: %w", tz, err)
	}

	cfg.MailDriver = strings.ToLower(os.Getenv("MAIL_DRIVER"))
	if cfg.MailDriver == "" {
		cfg.MailDriver = MailDriverLog
		if cfg.SMTPHost != "" {
			cfg.MailDriver = MailDriverSMTP
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	switch cfg.MailDriver {
	case MailDriverSMTP:
		if cfg.SMTPHost == "" {
			return nil, errors.New("MAIL_DRIVER is smtp but SMTP_HOST is not set")
		}
		if cfg.MailFrom == "" {
			return nil, errors.New("MAIL_DRIVER is smtp but MAIL_FROM is not set")
		}
	case MailDriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("MAIL_DRIVER is kafka but KAFKA_BROKERS is empty")
		}
	case MailDriverLog:
	default:
		return nil, fmt.Errorf("invalid MAIL_DRIVER %q: want smtp, kafka or log", cfg.MailDriver)
	}

	return cfg, nil
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.BearerToken == "" {
		return errors.New("BEARER_TOKEN is required")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive integer", key, s)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}
