package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Port    string `env:"APP_PORT"     envDefault:"8080"`
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DB_DSN      string `env:"DB_DSN"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"data/venue-vote.db"`

	JWTSecret            string `env:"JWT_SECRET"             envDefault:"dev-secret-change-me"`
	OperatorPasswordHash string `env:"OPERATOR_PASSWORD_HASH"`

	TelegramBotToken      string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookSecret string `env:"TELEGRAM_WEBHOOK_SECRET"`

	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `env:"VAPID_SUBJECT" envDefault:"mailto:admin@example.com"`

	RedisURL     string   `env:"REDIS_URL"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"venue-vote.session-events"`

	SchedulerInterval   time.Duration `env:"SCHEDULER_INTERVAL"   envDefault:"0s"`
	SweepTimeout        time.Duration `env:"SWEEP_TIMEOUT"        envDefault:"2m"`
	SweepConcurrency    int           `env:"SWEEP_CONCURRENCY"    envDefault:"4"`
	DispatchTimeout     time.Duration `env:"DISPATCH_TIMEOUT"     envDefault:"10s"`
	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY" envDefault:"16"`

	VoteRatePerMinute int `env:"VOTE_RATE_PER_MINUTE" envDefault:"10"`
	VoteRateBurst     int `env:"VOTE_RATE_BURST"      envDefault:"3"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DB_DSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres store"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.SchedulerInterval < 0 || c.SweepTimeout <= 0 || c.DispatchTimeout <= 0 {
		errs = append(errs, errors.New("scheduler and dispatch durations must be positive"))
	}
	if c.SweepConcurrency <= 0 || c.DispatchConcurrency <= 0 {
		errs = append(errs, errors.New("concurrency limits must be positive"))
	}
	if c.VoteRatePerMinute <= 0 || c.VoteRateBurst <= 0 {
		errs = append(errs, errors.New("vote rate limits must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) TelegramEnabled() bool { return c.TelegramBotToken != "" }
func (c Config) PushEnabled() bool     { return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" }
