package config

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string `env:"DB_URI"`
	DatabaseName string `env:"DB_NAME"`
	BaseURL      string `env:"BASE_URL"`
	Port         string `env:"PORT" envDefault:"8080"`
	Env          string `env:"ENV" envDefault:"development"`

	// AdminToken validates as an admin bypass on the check-token route. It is
	// never stored in the invite registry.
	AdminToken     string        `env:"ADMIN_TOKEN"`
	InviteTTL      time.Duration `env:"INVITE_TTL" envDefault:"168h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	ServiceUser         string `env:"SERVICE_USER"`
	ServicePasswordHash string `env:"SERVICE_PASSWORD_HASH"`

	SendgridAPIKey string `env:"SENDGRID_API_KEY"`
	MailFrom       string `env:"MAIL_FROM" envDefault:"no-reply@course-roster.app"`

	ReconcileSchedule    string `env:"RECONCILE_SCHEDULE" envDefault:"0 4 * * *"`
	ReconcileParallelism int    `env:"RECONCILE_PARALLELISM" envDefault:"4"`
	InviteSweepSchedule  string `env:"INVITE_SWEEP_SCHEDULE" envDefault:"@hourly"`
}

// New sets up all config related services
func New() *Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load(".env")

	c := &Config{}
	if err := env.Parse(c); err != nil {
		zap.S().With(err).Error("failed to parse env, falling back to defaults")
		c = defaults()
	}

	logger, err := setLogger(c.Env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return c
}

// Validate reports settings the API cannot start without
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("DB_URI is required but not set")
	}
	if c.DatabaseName == "" {
		return errors.New("DB_NAME is required but not set")
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("INVITE_TTL must be positive, got %v", c.InviteTTL)
	}
	if c.ReconcileParallelism < 1 {
		return fmt.Errorf("RECONCILE_PARALLELISM must be at least 1, got %d", c.ReconcileParallelism)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Port:                "8080",
		Env:                 "development",
		InviteTTL:           7 * 24 * time.Hour,
		RequestTimeout:      30 * time.Second,
		MailFrom:            "no-reply@course-roster.app",
		ReconcileSchedule:    "0 4 * * *",
		ReconcileParallelism: 4,
		InviteSweepSchedule:  "@hourly",
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
