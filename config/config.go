// Package config loads and watches the grade server configuration file.
//
// Top-level types:
//   - Config{Server, Source, Cache, Storage, Evaluation, Contract, Log}
//   - ServerConfig: listen address, admin key (by env var name), CORS
//     origins, lookup rate limit, shutdown timeout
//   - SourceConfig: delivery center base URL, center id and cookie (by env
//     var name), cookie jar file, headers, timeout, paging
//   - StorageConfig: override persistence backend (file | sqlite)
//
// Load(path) applies defaults, overlays the YAML file (if any) and validates.
// Secrets never live in the file, only the names of the variables holding
// them.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/grade-engine/deliverycenter"
)

// Default values.
const (
	DefaultAddr            = ":8000"
	DefaultAdminHeader     = "X-Admin-Key"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateWindow      = 60 * time.Second
	DefaultRateMax         = 30
	DefaultTimezone        = "Asia/Seoul"
)

type Config struct {
	Server     ServerConfig                 `yaml:"server"`
	Source     SourceConfig                 `yaml:"source"`
	Cache      CacheConfig                  `yaml:"cache"`
	Storage    StorageConfig                `yaml:"storage"`
	Evaluation EvaluationConfig             `yaml:"evaluation"`
	Contract   deliverycenter.ContractRules `yaml:"contract"`
	Log        LogConfig                    `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// AdminKeyEnv is the name of the environment variable holding the admin
	// API key. With no key set, admin routes reject every call.
	AdminKeyEnv string `yaml:"admin_key_env"`

	// AdminHeader is the request header carrying the admin key.
	AdminHeader string `yaml:"admin_header"`

	AllowedOrigins  []string        `yaml:"allowed_origins"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// AdminKey returns the admin key resolved from the environment.
func (s ServerConfig) AdminKey() string {
	if s.AdminKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.AdminKeyEnv)
}

// RateLimitConfig bounds public lookups per client IP.
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

type SourceConfig struct {
	BaseURL     string `yaml:"base_url"`
	CenterIDEnv string `yaml:"center_id_env"`

	// CookieFile is a browser cookie export. CookieEnv names a variable
	// holding a raw Cookie header, used when the file yields nothing.
	CookieFile string `yaml:"cookie_file"`
	CookieEnv  string `yaml:"cookie_env"`

	Origin    string        `yaml:"origin"`
	Referer   string        `yaml:"referer"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	PageSize  int           `yaml:"page_size"`
	MaxPages  int           `yaml:"max_pages"`
}

// CenterID returns the center id resolved from the environment.
func (s SourceConfig) CenterID() string {
	if s.CenterIDEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(s.CenterIDEnv))
}

// Cookie returns the fallback cookie resolved from the environment.
func (s SourceConfig) Cookie() string {
	if s.CookieEnv == "" {
		return ""
	}
	return os.Getenv(s.CookieEnv)
}

type CacheConfig struct {
	RosterTTL     time.Duration `yaml:"roster_ttl"`
	CompletionTTL time.Duration `yaml:"completion_ttl"`
}

type StorageConfig struct {
	// Backend is one of: file | sqlite.
	Backend            string `yaml:"backend"`
	JoinOverridesPath  string `yaml:"join_overrides_path"`
	LoginOverridesPath string `yaml:"login_overrides_path"`
	SQLitePath         string `yaml:"sqlite_path"`
}

type EvaluationConfig struct {
	// Timezone decides which calendar day "today" is.
	Timezone string `yaml:"timezone"`

	// LadderFile replaces the built-in tier ladder when set.
	LadderFile string `yaml:"ladder_file"`
}

// Location loads the configured timezone.
func (e EvaluationConfig) Location() (*time.Location, error) {
	return time.LoadLocation(e.Timezone)
}

type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
	// Format is one of: json | text.
	Format string `yaml:"format"`
}

// Load reads the file at path over the defaults. An empty path yields the
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        DefaultAddr,
			AdminKeyEnv: "GRADE_ADMIN_KEY",
			AdminHeader: DefaultAdminHeader,
			RateLimit: RateLimitConfig{
				Window:      DefaultRateWindow,
				MaxRequests: DefaultRateMax,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Source: SourceConfig{
			BaseURL:     deliverycenter.DefaultBaseURL,
			CenterIDEnv: "BAEMIN_CENTER_ID",
			CookieFile:  "session.json",
			CookieEnv:   "BAEMIN_COOKIE",
			Origin:      "https://deliverycenter.baemin.com",
			Referer:     "https://deliverycenter.baemin.com/",
			Timeout:     deliverycenter.DefaultTimeout,
			PageSize:    deliverycenter.DefaultPageSize,
			MaxPages:    deliverycenter.DefaultMaxPages,
		},
		Cache: CacheConfig{
			RosterTTL:     deliverycenter.DefaultRosterTTL,
			CompletionTTL: deliverycenter.DefaultCompletionTTL,
		},
		Storage: StorageConfig{
			Backend:            "file",
			JoinOverridesPath:  "join_overrides.json",
			LoginOverridesPath: "login4_overrides.json",
			SQLitePath:         "overrides.db",
		},
		Evaluation: EvaluationConfig{Timezone: DefaultTimezone},
		Contract:   deliverycenter.DefaultContractRules(),
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if cfg.Server.AdminHeader == "" {
		cfg.Server.AdminHeader = DefaultAdminHeader
	}
	if cfg.Server.RateLimit.Window <= 0 {
		return fmt.Errorf("server.rate_limit.window must be positive")
	}
	if cfg.Server.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("server.rate_limit.max_requests must be positive")
	}
	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if cfg.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if cfg.Source.PageSize <= 0 || cfg.Source.MaxPages <= 0 {
		return fmt.Errorf("source.page_size and source.max_pages must be positive")
	}
	if cfg.Cache.RosterTTL < 0 || cfg.Cache.CompletionTTL < 0 {
		return fmt.Errorf("cache ttls must not be negative")
	}
	switch cfg.Storage.Backend {
	case "file":
		if cfg.Storage.JoinOverridesPath == "" || cfg.Storage.LoginOverridesPath == "" {
			return fmt.Errorf("storage: file backend needs join_overrides_path and login_overrides_path")
		}
		if cfg.Storage.JoinOverridesPath == cfg.Storage.LoginOverridesPath {
			return fmt.Errorf("storage: override maps must not share a file")
		}
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return fmt.Errorf("storage: sqlite backend needs sqlite_path")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown: want file|sqlite", cfg.Storage.Backend)
	}
	if _, err := cfg.Evaluation.Location(); err != nil {
		return fmt.Errorf("evaluation.timezone %q: %w", cfg.Evaluation.Timezone, err)
	}
	if len(cfg.Contract.CodeMarkers) == 0 && len(cfg.Contract.DescriptionMarkers) == 0 {
		return fmt.Errorf("contract: at least one code or description marker is required")
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	return nil
}

// =============================================================================
// LOGGER
// =============================================================================

// NewLogger builds the process logger described by c, writing to stdout.
func (c LogConfig) NewLogger() *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q unknown: want debug|info|warn|error", s)
}
