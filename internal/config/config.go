// Package config loads portal settings from the environment, optionally
// seeded from a .env file. Every variable carries the PORTAL_ prefix.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Prefix is prepended to every variable name.
const Prefix = "PORTAL_"

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ErrStoreNotConfigured is returned in production when the hosted store
// location or credential is missing.
var ErrStoreNotConfigured = errors.New("store is not configured")

// Config is the full set of portal settings.
type Config struct {
	Env      string `env:"ENV" envDefault:"development" validate:"oneof=development production"`
	Addr     string `env:"ADDR" envDefault:":8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	StoreURL      string `env:"STORE_URL" validate:"omitempty,url"`
	StoreKey      string `env:"STORE_KEY"`
	StoreMaxConns int    `env:"STORE_MAX_CONNS" envDefault:"10" validate:"min=1"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"portal.db" validate:"required"`

	JWTSecret      string        `env:"JWT_SECRET" validate:"omitempty,min=32"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m" validate:"min=1m"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h" validate:"min=1m"`
	CSRFKey        string        `env:"CSRF_KEY" validate:"omitempty,len=32"`
	SecureCookies  bool          `env:"SECURE_COOKIES"`
	TrustedOrigins []string      `env:"TRUSTED_ORIGINS" envSeparator:","`

	AdminEmail       string `env:"ADMIN_EMAIL" validate:"omitempty,email"`
	AdminPassword    string `env:"ADMIN_PASSWORD"`
	AllowAdminSignUp bool   `env:"ALLOW_ADMIN_SIGNUP"`

	EnforceShiftCapacity bool `env:"ENFORCE_SHIFT_CAPACITY"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"portal.changes"`

	SlowQueryMS        int `env:"SLOW_QUERY_MS" envDefault:"50" validate:"min=1"`
	SlowRequestMS      int `env:"SLOW_REQUEST_MS" envDefault:"200" validate:"min=1"`
	RateLimitPerSecond int `env:"RATE_LIMIT_PER_SECOND" envDefault:"10" validate:"min=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads envFile when it exists, then the process environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse(env.Options{})
}

// Parse builds a Config from opts (tests pass opts.Environment), validates
// it and settles the store and secret fallbacks.
// POST: In development, missing secrets are replaced with random ones and a
// missing store is logged at WARN; in production both are errors
func Parse(opts env.Options) (Config, error) {
	var c Config
	opts.Prefix = Prefix
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	if missing := c.MissingStore(); len(missing) > 0 {
		if c.IsProduction() {
			return Config{}, fmt.Errorf("%w: set %s", ErrStoreNotConfigured, strings.Join(missing, ", "))
		}
		zap.L().Warn("config_event",
			zap.String("event", "store_not_configured"),
			zap.Strings("missing", missing),
			zap.String("fallback", c.SQLitePath),
		)
	}

	var err error
	if c.JWTSecret, err = secretOrRandom(c, "JWT_SECRET", c.JWTSecret, 32); err != nil {
		return Config{}, err
	}
	if c.CSRFKey, err = secretOrRandom(c, "CSRF_KEY", c.CSRFKey, 32); err != nil {
		return Config{}, err
	}
	return c, nil
}

// secretOrRandom keeps a configured secret, or outside production makes up a
// random one that lasts until restart.
func secretOrRandom(c Config, name, value string, size int) (string, error) {
	if value != "" {
		return value, nil
	}
	if c.IsProduction() {
		return "", fmt.Errorf("%s%s is required in production", Prefix, name)
	}
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate %s: %w", name, err)
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	zap.L().Warn("config_event", zap.String("event", "secret_generated"), zap.String("variable", Prefix+name))
	return string(buf), nil
}

// IsProduction reports whether Env is production.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// MissingStore names the store variables that are unset.
func (c Config) MissingStore() []string {
	var missing []string
	if c.StoreURL == "" {
		missing = append(missing, Prefix+"STORE_URL")
	}
	if c.StoreKey == "" {
		missing = append(missing, Prefix+"STORE_KEY")
	}
	return missing
}

// UseSQLite reports whether the local sqlite file stands in for the hosted store.
func (c Config) UseSQLite() bool {
	return len(c.MissingStore()) > 0
}

// StoreDSN returns STORE_URL with STORE_KEY set as the password.
func (c Config) StoreDSN() (string, error) {
	u, err := url.Parse(c.StoreURL)
	if err != nil {
		return "", fmt.Errorf("parse %sSTORE_URL: %w", Prefix, err)
	}
	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, c.StoreKey)
	return u.String(), nil
}

// SlowQuery is SlowQueryMS as a duration.
func (c Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}

// SlowRequest is SlowRequestMS as a duration.
func (c Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMS) * time.Millisecond
}
