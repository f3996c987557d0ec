package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr   = ":8080"
	defaultDBPath       = "urlcheck.db"
	defaultScheme       = "http"
	defaultAuthority    = "testserver"
	defaultMaxRedirects = 10
	defaultMediaPrefix  = "/media/"
	defaultStaticPrefix = "/static/"
	defaultUserAgent    = "Urlmethods"

	envConfigFile   = "URLCHECK_CONFIG"
	envListenAddr   = "URLCHECK_LISTEN_ADDR"
	envDBPath       = "URLCHECK_DB_PATH"
	envLogLevel     = "URLCHECK_LOG_LEVEL"
	envScheme       = "URLCHECK_SCHEME"
	envAuthority    = "URLCHECK_AUTHORITY"
	envMaxRedirects = "URLCHECK_MAX_REDIRECTS"
	envCheckTimeout = "URLCHECK_CHECK_TIMEOUT"
	envMediaPrefix  = "URLCHECK_MEDIA_PREFIX"
	envMediaRoot    = "URLCHECK_MEDIA_ROOT"
	envStaticPrefix = "URLCHECK_STATIC_PREFIX"
	envStaticRoot   = "URLCHECK_STATIC_ROOT"
	envUserAgent    = "URLCHECK_USER_AGENT"
)

// Config holds application configuration loaded from an optional YAML file
// and environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Scheme and Authority describe the local origin. Redirects are followed
	// only while they stay on it.
	Scheme    string
	Authority string

	// MaxRedirects of zero leaves the checker default in place.
	MaxRedirects int

	// CheckTimeout bounds a single local check. Zero means no bound.
	CheckTimeout time.Duration

	// Empty roots fall back to the files embedded in the example application.
	MediaPrefix  string
	MediaRoot    string
	StaticPrefix string
	StaticRoot   string

	UserAgent string
}

// fileConfig mirrors Config in the YAML file. Unset keys keep their defaults.
type fileConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	DBPath       string `yaml:"db_path"`
	LogLevel     string `yaml:"log_level"`
	Scheme       string `yaml:"scheme"`
	Authority    string `yaml:"authority"`
	MaxRedirects *int   `yaml:"max_redirects"`
	CheckTimeout string `yaml:"check_timeout"`
	Media        mount  `yaml:"media"`
	Static       mount  `yaml:"static"`
	UserAgent    string `yaml:"user_agent"`
}

type mount struct {
	Prefix string `yaml:"prefix"`
	Root   string `yaml:"root"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr:   defaultListenAddr,
		DBPath:       defaultDBPath,
		LogLevel:     slog.LevelInfo,
		Scheme:       defaultScheme,
		Authority:    defaultAuthority,
		MaxRedirects: defaultMaxRedirects,
		MediaPrefix:  defaultMediaPrefix,
		StaticPrefix: defaultStaticPrefix,
		UserAgent:    defaultUserAgent,
	}
}

// Load reads configuration with sensible defaults. When URLCHECK_CONFIG names
// a YAML file it is applied first; environment variables win over it.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(envConfigFile); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.MaxRedirects < 0 {
		return Config{}, fmt.Errorf("max redirects must not be negative, got %d", cfg.MaxRedirects)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.DBPath, fc.DBPath)
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	setString(&c.Scheme, fc.Scheme)
	setString(&c.Authority, fc.Authority)
	if fc.MaxRedirects != nil {
		c.MaxRedirects = *fc.MaxRedirects
	}
	if fc.CheckTimeout != "" {
		d, err := time.ParseDuration(fc.CheckTimeout)
		if err != nil {
			return fmt.Errorf("config file check_timeout: %w", err)
		}
		c.CheckTimeout = d
	}
	setString(&c.MediaPrefix, fc.Media.Prefix)
	setString(&c.MediaRoot, fc.Media.Root)
	setString(&c.StaticPrefix, fc.Static.Prefix)
	setString(&c.StaticRoot, fc.Static.Root)
	setString(&c.UserAgent, fc.UserAgent)
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ListenAddr, os.Getenv(envListenAddr))
	setString(&c.DBPath, os.Getenv(envDBPath))
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
	setString(&c.Scheme, os.Getenv(envScheme))
	setString(&c.Authority, os.Getenv(envAuthority))
	if v := os.Getenv(envMaxRedirects); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxRedirects, err)
		}
		c.MaxRedirects = n
	}
	if v := os.Getenv(envCheckTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envCheckTimeout, err)
		}
		c.CheckTimeout = d
	}
	setString(&c.MediaPrefix, os.Getenv(envMediaPrefix))
	setString(&c.MediaRoot, os.Getenv(envMediaRoot))
	setString(&c.StaticPrefix, os.Getenv(envStaticPrefix))
	setString(&c.StaticRoot, os.Getenv(envStaticRoot))
	setString(&c.UserAgent, os.Getenv(envUserAgent))
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
