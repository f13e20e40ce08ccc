// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults are suitable for local development.
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`
	Port string `envconfig:"APP_PORT" default:"8080"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory"`
	StoreFile   string `envconfig:"STORE_FILE" default:"data/bookings.json"`

	DBUser      string `envconfig:"DB_USER" default:"root"`
	DBPass      string `envconfig:"DB_PASS"` // empty allowed
	DBHost      string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort      string `envconfig:"DB_PORT" default:"3306"`
	DBName      string `envconfig:"DB_NAME" default:"gym_booking"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	JWTSecret       string   `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin    int      `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`
	WriteRoles      []string `envconfig:"BOOKING_WRITE_ROLES" default:"ADMIN,STAFF,TRAINER"`
	BookingTimezone string   `envconfig:"BOOKING_TIMEZONE" default:"UTC"`

	RedisConfig // REDIS_* keys, unprefixed

	LockTTL time.Duration `envconfig:"LOCK_TTL" default:"10s"`

	RabbitURL       string `envconfig:"RABBITMQ_URL"`
	EventsExchange  string `envconfig:"EVENTS_EXCHANGE" default:"bookings"`
	ConsumerEnabled bool   `envconfig:"EVENTS_CONSUMER_ENABLED" default:"false"`
	EventsLogPath   string `envconfig:"EVENTS_LOG_PATH" default:"logs/booking.log"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Cache     CacheConfig     `envconfig:"CACHE"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
}

// Load reads an optional .env file and then the process environment.
// A missing JWT_SECRET or an unknown store driver is an error.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverFile, DriverMySQL:
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverFile && c.StoreFile == "" {
		return errors.New("STORE_FILE is required when STORE_DRIVER=file")
	}
	if _, err := time.LoadLocation(c.BookingTimezone); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.BookingTimezone, err)
	}
	return nil
}

// Location returns the booking timezone; Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BookingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	roles := c.WriteRoles[:0]
	for _, r := range c.WriteRoles {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r != "" {
			roles = append(roles, r)
		}
	}
	c.WriteRoles = roles
	c.Cache.normalize()
	c.RateLimit.normalize()
}
