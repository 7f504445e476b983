// Package app wires the gateway's components from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"metricgate/internal/api"
	"metricgate/internal/audit"
	"metricgate/internal/cache"
	"metricgate/internal/config"
	"metricgate/internal/domain"
	"metricgate/internal/executor"
	"metricgate/internal/gateway"
	"metricgate/internal/middleware"
	"metricgate/internal/registry"
	"metricgate/internal/sqlgen"
	"metricgate/metadata"
)

// Deps holds what the caller must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// App is the fully-wired gateway.
type App struct {
	Registry *registry.Registry
	Service  *gateway.Service
	Handler  *api.Handler

	cfg       *config.Config
	logger    *slog.Logger
	db        *sql.DB
	results   *cache.Cache
	audit     *audit.Store
	validator middleware.TokenValidator
}

// New loads the catalog, opens the analytics database and the optional audit
// log, and builds the service and HTTP handler. Close releases everything New
// opened.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg, logger := deps.Cfg, deps.Logger

	reg, err := LoadRegistry(cfg.CatalogDir)
	if err != nil {
		return nil, err
	}
	logger.Info("metric catalog loaded", "definitions", reg.Len())

	a := &App{Registry: reg, cfg: cfg, logger: logger}
	if err := a.open(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	db, err := executor.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpenConns)
	if err != nil {
		return err
	}
	a.db = db
	if cfg.DBDriver == executor.DriverDuckDB && cfg.DBDSN == "" {
		if err := seedDemoWarehouse(ctx, db); err != nil {
			return fmt.Errorf("seed demo warehouse: %w", err)
		}
		logger.Info("seeded in-memory demo warehouse")
	}

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	a.results = cache.New(cfg.CacheTTL, cfg.CacheMaxEntries)
	exec := executor.New(db, cfg.QueryTimeout, logger)
	a.Service = gateway.NewService(a.Registry, gen, exec, a.results, logger)
	a.Handler = api.NewHandler(a.Service, a.Registry, logger)
	a.Handler.SetHealthCheck(db.PingContext)

	if cfg.AuditDBPath != "" {
		store, err := audit.Open(ctx, cfg.AuditDBPath, logger)
		if err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		a.audit = store
		a.Service.SetAudit(store)
		a.Handler.SetAudit(store)
	}

	a.validator, err = newValidator(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	return nil
}

// Router returns the HTTP handler. ctx bounds background middleware work.
func (a *App) Router(ctx context.Context) http.Handler {
	return api.NewRouter(ctx, a.Handler, api.RouterConfig{
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			Burst:             a.cfg.RateLimitBurst,
		},
		Validator: a.validator,
	}, a.logger)
}

// Close stops the cache and closes the databases.
func (a *App) Close() error {
	var errs []error
	if a.results != nil {
		a.results.Stop()
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// LoadRegistry loads the catalog from dir, or the embedded catalog when dir
// is empty, and checks the catalog-wide invariants.
func LoadRegistry(dir string) (*registry.Registry, error) {
	var (
		fsys fs.FS = metadata.Catalog
		root       = metadata.CatalogDir
	)
	if dir != "" {
		fsys, root = os.DirFS(dir), "."
	}
	reg, err := registry.Load(fsys, root)
	if err != nil {
		return nil, err
	}
	if err := reg.CheckInvariants(); err != nil {
		return nil, err
	}
	return reg, nil
}

func newGenerator(cfg *config.Config, logger *slog.Logger) (domain.TextGenerator, error) {
	switch cfg.Generator {
	case config.GeneratorTemplate:
		return sqlgen.NewTemplateGenerator(nil, cfg.ResultLimit), nil
	case config.GeneratorAnthropic:
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		return sqlgen.NewAnthropicGenerator(client, cfg.AnthropicModel, cfg.AnthropicMaxTokens, nil, cfg.ResultLimit, logger), nil
	default:
		return nil, fmt.Errorf("unsupported generator %q", cfg.Generator)
	}
}

// newValidator returns nil when authentication is disabled. OIDC takes
// precedence over a shared secret.
func newValidator(ctx context.Context, auth config.AuthConfig) (middleware.TokenValidator, error) {
	switch {
	case auth.IssuerURL != "":
		v, err := middleware.NewOIDCValidator(ctx, auth.IssuerURL, auth.Audience)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		return v, nil
	case auth.JWTSecret != "":
		v, err := middleware.NewHS256Validator(auth.JWTSecret, auth.Audience)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, nil
	}
}
