package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SCRYPTEX"

// Config is the full service configuration
type Config struct {
	Server   Server
	Auth     Auth
	Store    Store
	Database Database
	Nonce    Nonce
	Redis    Redis
	Events   Events
	Logger   Logger
}

// Server configures the HTTP listener. Mode is a gin mode.
type Server struct {
	Addr string
	Mode string
}

// Auth configures challenges and tokens
type Auth struct {
	Product        string
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	NonceTTL       time.Duration `mapstructure:"nonce_ttl"`
	AdminAddresses []string      `mapstructure:"admin_addresses"`
}

// Store selects the user and session repositories: memory or postgres
type Store struct {
	Driver string
}

// Database points at PostgreSQL when store.driver is postgres
type Database struct {
	URL string
}

// Nonce selects the challenge nonce store: memory or redis
type Nonce struct {
	Driver string
}

// Redis is used by the redis nonce store and the event publisher
type Redis struct {
	URL string
}

// Events toggles session event publishing
type Events struct {
	Enabled bool
	Topic   string
}

// Logger sets the slog level and the text or json format
type Logger struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("auth.product", "SCRYPTEX")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.nonce_ttl", 5*time.Minute)
	v.SetDefault("auth.admin_addresses", []string{})
	v.SetDefault("store.driver", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("nonce.driver", "memory")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic", "scryptex.sessions")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
}

// LoadConfig reads the yaml file at path, if any, layered over defaults and
// SCRYPTEX_* environment variables (SCRYPTEX_AUTH_JWT_SECRET sets auth.jwt_secret).
func LoadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return v, nil
}

// ParseConfig decodes v into a Config and validates it
func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is LoadConfig followed by ParseConfig
func Load(path string) (*Config, error) {
	v, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(v)
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.NonceTTL <= 0 {
		errs = append(errs, errors.New("auth ttls must be positive"))
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("unknown server.mode %q", c.Server.Mode))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Nonce.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown nonce.driver %q", c.Nonce.Driver))
	}
	if (c.Nonce.Driver == "redis" || c.Events.Enabled) && c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	return errors.Join(errs...)
}
