// Package config loads service configuration from an optional YAML file,
// a .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vainnor/session-stats/analyzer"
	"github.com/vainnor/session-stats/db"
)

type Config struct {
	StoreURI string `koanf:"store_uri"`
	Port     int    `koanf:"port"`
	LogLevel string `koanf:"log_level"`

	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	QueryTimeout   time.Duration `koanf:"query_timeout"`

	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`
}

var (
	ErrMissingStoreURI = errors.New("SESSION_STORE_URI is required")
	ErrInvalidPort     = errors.New("PORT must be between 1 and 65535")
	ErrInvalidTimeout  = errors.New("timeouts must be positive")
	ErrInvalidRate     = errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	ErrInvalidSampling = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
)

const (
	DefaultPort           = 8080
	DefaultLogLevel       = "info"
	DefaultRateLimitRPS   = 2.0
	DefaultRateLimitBurst = 20
	DefaultTracingSample  = 1.0
)

// Load reads configuration. A missing .env file is ignored; a config file
// that is named but cannot be read is an error. The returned slice holds
// every problem found, empty when the config is usable.
func Load(configFilePath string) (*Config, []error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, []error{fmt.Errorf("failed to load .env: %w", err)}
	}

	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	port, err := envInt("PORT", k.Int("port"), DefaultPort)
	collect(err)
	connectTimeout, err := envDuration("CONNECT_TIMEOUT", k.Duration("connect_timeout"), db.DefaultConnectTimeout)
	collect(err)
	queryTimeout, err := envDuration("QUERY_TIMEOUT", k.Duration("query_timeout"), analyzer.DefaultQueryTimeout)
	collect(err)
	rps, err := envFloat("RATE_LIMIT_RPS", k.Float64("rate_limit_rps"), DefaultRateLimitRPS)
	collect(err)
	burst, err := envInt("RATE_LIMIT_BURST", k.Int("rate_limit_burst"), DefaultRateLimitBurst)
	collect(err)
	tracingEnabled, err := envBool("TRACING_ENABLED", k.Bool("tracing_enabled"))
	collect(err)
	tracingInsecure, err := envBool("TRACING_INSECURE", k.Bool("tracing_insecure"))
	collect(err)
	sampleRate := DefaultTracingSample
	if k.Exists("tracing_sample_rate") {
		sampleRate = k.Float64("tracing_sample_rate")
	}
	sampleRate, err = envFloat("TRACING_SAMPLE_RATE", 0, sampleRate)
	collect(err)

	cfg := &Config{
		StoreURI:       envString("SESSION_STORE_URI", k.String("store_uri"), ""),
		Port:           port,
		LogLevel:       envString("LOG_LEVEL", k.String("log_level"), DefaultLogLevel),
		ConnectTimeout: connectTimeout,
		QueryTimeout:   queryTimeout,
		RateLimitRPS:   rps,
		RateLimitBurst: burst,

		TracingEnabled:    tracingEnabled,
		TracingExporter:   envString("TRACING_EXPORTER", k.String("tracing_exporter"), ""),
		TracingEndpoint:   envString("TRACING_ENDPOINT", k.String("tracing_endpoint"), ""),
		TracingSampleRate: sampleRate,
		TracingInsecure:   tracingInsecure,
	}

	return cfg, append(errs, cfg.Validate()...)
}

// Validate checks the loaded values. The store URI is only required for
// serving; one-shot analysis may pass it on the command line.
func (c *Config) Validate() []error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.ConnectTimeout <= 0 || c.QueryTimeout <= 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, ErrInvalidRate)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampling)
	}
	return errs
}

// RequireStore reports ErrMissingStoreURI when no store is configured.
func (c *Config) RequireStore() error {
	if c.StoreURI == "" {
		return ErrMissingStoreURI
	}
	return nil
}

func envString(key, fileVal, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if fileVal != "" {
		return fileVal
	}
	return defaultVal
}

func envInt(key string, fileVal, defaultVal int) (int, error) {
	if val := os.Getenv(key); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
		}
		return i, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return defaultVal, nil
}

func envFloat(key string, fileVal, defaultVal float64) (float64, error) {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
		}
		return f, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return defaultVal, nil
}

func envDuration(key string, fileVal, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
		return d, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return defaultVal, nil
}

func envBool(key string, fileVal bool) (bool, error) {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
		}
		return b, nil
	}
	return fileVal, nil
}
