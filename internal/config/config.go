// Package config loads configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
)

// Session store backends
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	APIName              string        `env:"GC_API_APP_NAME" default:"Git Coder API"`
	APIVersion           string        `env:"GC_API_APP_VERSION" default:"2.0.0"`
	ServerPort           string        `env:"GC_API_SERVER_PORT" default:"3000"`
	ServerLogLevel       string        `env:"GC_API_SERVER_LOG_LEVEL" default:"info"`
	StaticDir            string        `env:"GC_API_STATIC_DIR"`
	CORSAllowOrigins     string        `env:"GC_API_CORS_ALLOW_ORIGINS" default:"*"`
	LoginRateLimit       float64       `env:"GC_API_LOGIN_RATE_LIMIT" default:"5"`
	GitHubAPIURL         string        `env:"GC_API_GITHUB_API_URL" default:"https://api.github.com"`
	GitHubUserAgent      string        `env:"GC_API_GITHUB_USER_AGENT" default:"Git-Coder/2.0.0"`
	UpstreamTimeout      time.Duration `env:"GC_API_UPSTREAM_TIMEOUT" default:"30s"`
	SessionMaxAge        time.Duration `env:"GC_API_SESSION_MAX_AGE" default:"24h"`
	SessionSweepSchedule string        `env:"GC_API_SESSION_SWEEP_SCHEDULE" default:"@every 10m"`
	SessionStore         string        `env:"GC_API_SESSION_STORE" default:"memory"`
	SessionSecret        string        `env:"GC_API_SESSION_SECRET"`
	RedisHost            string        `env:"GC_API_REDIS_HOST"`
	RedisPort            string        `env:"GC_API_REDIS_PORT" default:"6379"`
	RedisPassword        string        `env:"GC_API_REDIS_PASSWORD"`
	RedisDB              int           `env:"GC_API_REDIS_DB" default:"0"`
	PostgresDsn          string        `env:"GC_API_PG_DSN"`
	PostgresSchema       string        `env:"GC_API_PG_SCHEMA" default:"gitcoder"`
	PostgresLogLevel     string        `env:"GC_API_PG_LOG_LEVEL" default:"warn"`
}

var (
	SingleLine string = "--------------------------------------------------"
)

var (
	instance *Config
	once     sync.Once
	err      error
)

// Get returns the application configuration
func Get() (*Config, error) {
	zaplogger.Info(SingleLine)
	zaplogger.Info("Loading Configuration")

	once.Do(func() {
		instance, err = Load()
	})
	return instance, err
}

// Load reads a .env file when present and builds a fresh configuration from the environment
func Load() (*Config, error) {
	// a missing .env file is not an error, the environment may be set already
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() error {
	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(c).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" {
			return fmt.Errorf("missing env tag for field %s", field.Name)
		}

		value, ok := os.LookupEnv(envTag)
		if !ok || value == "" {
			value = field.Tag.Get("default")
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("env variable %s is required but not set", envTag)
			}
			continue
		}

		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("invalid value for %s: %v", envTag, err)
		}
	}

	return nil
}

func setField(f reflect.Value, value string) error {
	if f.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Float64:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		f.SetFloat(n)
	default:
		return fmt.Errorf("unsupported field type %s", f.Kind())
	}
	return nil
}

// Validate checks the combinations the environment cannot express on its own
func (c *Config) Validate() error {
	if c.SessionMaxAge <= 0 {
		return errors.New("session max age must be positive")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("upstream timeout must be positive")
	}
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisHost == "" {
			return errors.New("redis session store requires GC_API_REDIS_HOST")
		}
		if c.SessionSecret == "" {
			return errors.New("redis session store requires GC_API_SESSION_SECRET")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.SessionStore)
	}
	return nil
}

// AllowOrigins splits the CORS origin list
func (c *Config) AllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// String returns the configuration as a string
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n--------------------------------------\n")
	sb.WriteString("Configuration:\n")
	sb.WriteString("--------------------------------------\n")

	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(*c)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := fmt.Sprint(v.Field(i).Interface())

		// Mask sensitive fields
		value = maskSensitiveField(field.Name, value)
		sb.WriteString(fmt.Sprintf("  %s:  %s\n", field.Name, value))
	}

	sb.WriteString("--------------------------------------\n")

	return sb.String()
}

func maskSensitiveField(fieldName, value string) string {
	sensitiveFields := []string{"token", "dsn", "secret", "password"}

	fieldNameLower := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(fieldNameLower, sensitive) {
			return maskValue(value)
		}
	}

	return value
}

func maskValue(value string) string {
	if len(value) <= 3 {
		return strings.Repeat("*", 7)
	}
	return value[:3] + strings.Repeat("*", 7)
}
