// Package config handles application configuration and environment loading.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Generators.
const (
	GeneratorTemplate  = "template"
	GeneratorAnthropic = "anthropic"
)

// AuthConfig holds bearer-token authentication settings. With neither a
// secret nor an issuer configured, the API is unauthenticated.
type AuthConfig struct {
	JWTSecret string // HS256 shared secret for local/dev tokens
	IssuerURL string // OIDC issuer URL
	Audience  string // required token audience
}

// Enabled reports whether any authentication method is configured.
func (a *AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || a.IssuerURL != ""
}

// Config holds the gateway configuration.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // debug, info, warn, error (default "info")
	LogFormat  string // "text" (default) or "json"
	Env        string // "development" (default) or "production"

	CatalogDir string // directory of metric YAML files; empty uses the embedded catalog

	DBDriver       string // duckdb (default), pgx, clickhouse, sqlite3
	DBDSN          string
	DBMaxOpenConns int           // default 4
	QueryTimeout   time.Duration // default 10s

	CacheTTL        time.Duration // default 300s
	CacheMaxEntries int           // default 512

	Generator          string // template (default) or anthropic
	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicMaxTokens int64
	ResultLimit        int // default 100

	AuditDBPath string // empty disables the audit log

	RateLimitRPS       float64  // default 100
	RateLimitBurst     int      // default 200
	CORSAllowedOrigins []string // default ["*"]

	Auth AuthConfig

	// Warnings collects non-fatal findings; the caller logs them once the
	// logger exists.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables and applies
// defaults. Malformed numeric or duration values are errors.
func LoadFromEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		LogFormat:          strings.ToLower(os.Getenv("LOG_FORMAT")),
		Env:                os.Getenv("ENV"),
		CatalogDir:         os.Getenv("CATALOG_DIR"),
		DBDriver:           os.Getenv("DB_DRIVER"),
		DBDSN:              os.Getenv("DB_DSN"),
		Generator:          strings.ToLower(os.Getenv("GENERATOR")),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     os.Getenv("ANTHROPIC_MODEL"),
		AuditDBPath:        os.Getenv("AUDIT_DB_PATH"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
			Audience:  os.Getenv("AUTH_AUDIENCE"),
		},
	}

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", &errs)
	cfg.QueryTimeout = envDuration("QUERY_TIMEOUT", &errs)
	cfg.CacheTTL = envDuration("CACHE_TTL", &errs)
	cfg.CacheMaxEntries = envInt("CACHE_MAX_ENTRIES", &errs)
	cfg.AnthropicMaxTokens = int64(envInt("ANTHROPIC_MAX_TOKENS", &errs))
	cfg.ResultLimit = envInt("RESULT_LIMIT", &errs)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", &errs)
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS: %q is not a number", v))
		}
		cfg.RateLimitRPS = f
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.DBDriver == "" {
		c.DBDriver = "duckdb"
	}
	if c.DBMaxOpenConns == 0 {
		c.DBMaxOpenConns = 4
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 300 * time.Second
	}
	if c.CacheMaxEntries == 0 {
		c.CacheMaxEntries = 512
	}
	if c.Generator == "" {
		c.Generator = GeneratorTemplate
	}
	if c.AnthropicModel == "" {
		c.AnthropicModel = "claude-sonnet-4-5"
	}
	if c.AnthropicMaxTokens == 0 {
		c.AnthropicMaxTokens = 1024
	}
	if c.ResultLimit == 0 {
		c.ResultLimit = 100
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 100
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 200
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
}

// Validate checks that the configuration is internally consistent. It
// appends warnings for settings that are allowed but unsafe outside
// development.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case "duckdb", "pgx", "clickhouse", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported (duckdb, pgx, clickhouse, sqlite3)", c.DBDriver))
	}
	switch c.Generator {
	case GeneratorTemplate:
	case GeneratorAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when GENERATOR=anthropic"))
		}
	default:
		errs = append(errs, fmt.Errorf("GENERATOR %q is not supported (template, anthropic)", c.Generator))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not supported (text, json)", c.LogFormat))
	}

	for name, v := range map[string]int64{
		"DB_MAX_OPEN_CONNS":    int64(c.DBMaxOpenConns),
		"CACHE_MAX_ENTRIES":    int64(c.CacheMaxEntries),
		"ANTHROPIC_MAX_TOKENS": c.AnthropicMaxTokens,
		"RESULT_LIMIT":         int64(c.ResultLimit),
		"RATE_LIMIT_BURST":     int64(c.RateLimitBurst),
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.QueryTimeout < 0 || c.CacheTTL < 0 {
		errs = append(errs, errors.New("QUERY_TIMEOUT and CACHE_TTL must be positive"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must be positive"))
	}
	if c.Auth.IssuerURL != "" && c.Auth.Audience == "" {
		errs = append(errs, errors.New("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set"))
	}

	wildcardCORS := len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*"
	if c.IsProduction() {
		if !c.Auth.Enabled() {
			errs = append(errs, errors.New("authentication must be configured in production (set AUTH_ISSUER_URL or JWT_SECRET)"))
		}
		if wildcardCORS {
			errs = append(errs, errors.New("CORS wildcard (*) is not allowed in production (ENV=production)"))
		}
	} else {
		if !c.Auth.Enabled() {
			c.Warnings = append(c.Warnings, "authentication is not configured; the API accepts anonymous requests")
		}
		if c.DBDSN == "" && c.DBDriver == "duckdb" {
			c.Warnings = append(c.Warnings, "DB_DSN is empty; using an in-memory DuckDB database")
		}
	}

	return errors.Join(errs...)
}

// LoadDotEnv loads variables from a .env file without overriding variables
// already set in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envInt(key string, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
	}
	return n
}

// envDuration accepts Go durations ("30s") and bare integers as seconds.
func envDuration(key string, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
