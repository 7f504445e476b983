package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"metricgate/internal/app"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), *envFile)
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(os.Stderr)
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           a.Router(ctx),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "generator", cfg.Generator, "db_driver", cfg.DBDriver)
				logger.Info("try: curl -X POST -d '{\"metric\":\"revenue\",\"time_range\":\"last_month\"}' http://" +
					curlHostForListenAddr(cfg.ListenAddr) + "/v1/query")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	f := cmd.Flags()
	f.String("listen", "", "Listen address (overrides LISTEN_ADDR)")
	f.String("catalog-dir", "", "Metric catalog directory (overrides CATALOG_DIR)")
	f.String("db-driver", "", "Database driver: duckdb, pgx, clickhouse, sqlite3 (overrides DB_DRIVER)")
	f.String("db-dsn", "", "Database DSN (overrides DB_DSN)")
	f.String("generator", "", "SQL generator: template or anthropic (overrides GENERATOR)")
	f.String("audit-db", "", "Audit log SQLite path (overrides AUDIT_DB_PATH)")
	f.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	return cmd
}

// curlHostForListenAddr turns a listen address into a host:port usable in
// a curl hint. Wildcard and empty hosts become localhost.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
