package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/kopkar/kopkar-client/pkg/logging"
	"github.com/kopkar/kopkar-client/pkg/session"
)

const (
	defaultLogLevel  = string(logging.LevelWarn)
	defaultStore     = "file"
	defaultRedisAddr = "localhost:6379"
	defaultRetries   = 3
	defaultDelay     = time.Second
	defaultTimeout   = 15 * time.Second
)

type Config struct {
	// API root, e.g. https://host/kopkar/api/v1/
	BaseURL string `validate:"required,url"`

	// Logging level (debug, info, warn, error, disabled)
	LogLevel string

	// Human readable logs instead of JSON
	Pretty bool

	// Token store backend
	Store string `validate:"oneof=file redis"`

	// Directory of the file store
	SessionDir string

	// Redis address for the redis store
	RedisAddr string `validate:"required_if=Store redis"`

	// Request attempts, delay between attempts and per-attempt timeout
	Retries int           `validate:"min=1"`
	Delay   time.Duration `validate:"min=0"`
	Timeout time.Duration `validate:"gt=0"`

	// Print a metrics summary to stderr after the command
	Stats bool
}

func NewConfig() *Config {
	return &Config{
		LogLevel:   defaultLogLevel,
		Store:      defaultStore,
		SessionDir: session.DefaultDir(),
		RedisAddr:  defaultRedisAddr,
		Retries:    defaultRetries,
		Delay:      defaultDelay,
		Timeout:    defaultTimeout,
	}
}

// Load variables from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"KOPKAR_BASE_URL":    setString(&c.BaseURL),
		"KOPKAR_LOG_LEVEL":   setString(&c.LogLevel),
		"KOPKAR_STORE":       setString(&c.Store),
		"KOPKAR_SESSION_DIR": setString(&c.SessionDir),
		"KOPKAR_REDIS_ADDR":  setString(&c.RedisAddr),
		"KOPKAR_RETRIES":     setInt(&c.Retries),
		"KOPKAR_DELAY":       setDuration(&c.Delay),
		"KOPKAR_TIMEOUT":     setDuration(&c.Timeout),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// ParseFlags parses global flags up to the first non-flag argument and
// returns the remaining arguments (the subcommand and its flags).
func (c *Config) ParseFlags(args []string) ([]string, error) {
	fs := pflag.NewFlagSet("kopkar", pflag.ContinueOnError)
	fs.SetInterspersed(false)

	fs.StringVarP(&c.BaseURL, "base-url", "b", c.BaseURL, "API base URL")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error, disabled)")
	fs.BoolVar(&c.Pretty, "pretty", c.Pretty, "Human readable logs")
	fs.StringVar(&c.Store, "store", c.Store, "Token store (file, redis)")
	fs.StringVar(&c.SessionDir, "session-dir", c.SessionDir, "Directory of the file token store")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address for the redis token store")
	fs.IntVarP(&c.Retries, "retries", "r", c.Retries, "Attempts per request")
	fs.DurationVar(&c.Delay, "delay", c.Delay, "Delay between attempts")
	fs.DurationVarP(&c.Timeout, "timeout", "t", c.Timeout, "Timeout of a single attempt")
	fs.BoolVar(&c.Stats, "stats", c.Stats, "Print a metrics summary to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
