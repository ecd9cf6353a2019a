// Package config loads application configuration from environment variables.
// An optional .env file is read first so local runs need no exported shell
// state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the process-level settings.  Each field corresponds to an
// environment variable.
type Config struct {
	Env          string // APP_ENV (dev, test, prod)
	Port         string // APP_PORT
	DBDriver     string // DB_DRIVER: mysql, postgres or memory
	DBDSN        string // DB_DSN, overrides the DB_* parts below
	DBUser       string
	DBPass       string
	DBHost       string
	DBPort       string
	DBName       string
	JWTSecret    string // JWT_SECRET, shared with the identity provider
	AccessTTLMin int    // ACCESS_TOKEN_TTL_MIN, used by the token command
	LogLevel     string
	LogFormat    string
}

// LoadDotEnv reads .env from the working directory when present.  Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("config: could not read .env")
	}
}

// Load reads Config from the environment.  Every missing required variable
// is reported in the returned error.
func Load() (Config, error) {
	var errs *multierror.Error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			errs = multierror.Append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}

	cfg := Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		DBDriver:     strings.ToLower(envStr("DB_DRIVER", "mysql")),
		DBDSN:        os.Getenv("DB_DSN"),
		DBPass:       os.Getenv("DB_PASS"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		LogFormat:    envStr("LOG_FORMAT", "text"),
	}
	switch cfg.DBDriver {
	case "memory":
	case "mysql", "postgres":
		if cfg.DBDSN == "" {
			cfg.DBUser = must("DB_USER")
			cfg.DBHost = must("DB_HOST")
			cfg.DBPort = must("DB_PORT")
			cfg.DBName = must("DB_NAME")
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver))
	}
	return cfg, errs.ErrorOrNil()
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus
// logger.
func (c Config) ConfigureLogging() {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("config: unknown log level %q, using info", c.LogLevel)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
