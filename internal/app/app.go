// Package app wires the advisory pipeline from configuration. Both the HTTP
// server and the weather-alerts CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/weather-advisory/internal/advisory"
	"github.com/neexbeast/weather-advisory/internal/alert"
	"github.com/neexbeast/weather-advisory/internal/cache"
	"github.com/neexbeast/weather-advisory/internal/config"
	"github.com/neexbeast/weather-advisory/internal/notify"
	"github.com/neexbeast/weather-advisory/internal/observability"
	"github.com/neexbeast/weather-advisory/internal/storage"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

// App holds the long-lived dependencies of a running process.
type App struct {
	Pool         *pgxpool.Pool
	Redis        *redis.Client // nil when the in-process cache is used
	Weather      *weather.Provider
	Orchestrator *advisory.Orchestrator

	closers []io.Closer
}

// New connects to Postgres and (optionally) Redis, applies migrations when
// configured, and builds the pipeline. A nil metrics gets an unregistered set
// shared by every stage. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{}
	clock := clockwork.NewRealClock()
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}

	pool, err := storage.Connect(ctx, cfg.DatabaseURL, int32(cfg.BatchWorkers)+2)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.Pool = pool

	if cfg.RunMigrations {
		if err := storage.RunMigrations(ctx, pool, storage.MigrationFiles()); err != nil {
			a.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	var store weather.CacheStore
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.Redis = client
		a.closers = append(a.closers, client)
		store = cache.NewRedisStore(client)
	} else {
		log.Warn("REDIS_URL not set; using in-process weather cache")
		store = cache.NewMemoryStore(clock)
	}

	mailer, err := newMailer(cfg, clock, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := mailer.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	var upstream *weather.OpenMeteoClient
	if cfg.WeatherAPIURL != "" {
		upstream = weather.NewOpenMeteoClientWithURL(cfg.WeatherAPIURL, cfg.WeatherTimeout)
	} else {
		upstream = weather.NewOpenMeteoClient(cfg.WeatherTimeout)
	}

	a.Weather = weather.NewProvider(upstream, store, clock, log, metrics)
	a.Orchestrator = advisory.NewOrchestrator(
		storage.NewRepository(pool),
		alert.NewThresholdEvaluator(a.Weather),
		a.Weather,
		notify.NewDispatcher(mailer, cfg.MailTimeout, clock, log, metrics),
		advisory.Config{Workers: cfg.BatchWorkers, BatchTimeout: cfg.BatchTimeout},
		clock,
		log,
		metrics,
	)

	return a, nil
}

// newMailer picks the transport named by MAIL_DRIVER.
func newMailer(cfg *config.Config, clock clockwork.Clock, log *slog.Logger) (notify.Mailer, error) {
	switch cfg.MailDriver {
	case config.MailDriverSMTP:
		return notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
		}, clock), nil
	case config.MailDriverKafka:
		return notify.NewKafkaMailer(cfg.KafkaBrokers, cfg.KafkaMailTopic, clock), nil
	case config.MailDriverLog:
		log.Warn("MAIL_DRIVER=log; alert emails will only be logged")
		return notify.NewLogMailer(log), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.MailDriver)
	}
}

// Close releases every connection the App opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return errors.Join(errs...)
}
