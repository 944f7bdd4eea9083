package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-texport"
	"github.com/alnah/go-texport/internal/config"
	"github.com/alnah/go-texport/internal/server"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// runServe starts the HTTP API and blocks until ctx is canceled.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(flags.common, env)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}
	if flags.workers > 0 {
		cfg.Server.Workers = flags.workers
	}
	if flags.production {
		cfg.Server.Production = true
	}
	if err := flags.export.apply(cfg); err != nil {
		return err
	}

	logger := newLogger(flags.common, env.Stderr)
	pool := texport.NewPool(texport.ResolvePoolSize(cfg.Server.Workers), exporterFactory(cfg, logger, env.ExportOptions))
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warn("pool close failed", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	srv := newHTTPServer(cfg, pool, logger, env)
	logger.Info("listening",
		"addr", ln.Addr().String(),
		"workers", pool.Size(),
		"engine", cfg.Export.Engine,
		"production", cfg.Server.Production,
	)
	return serve(ctx, srv, ln, logger)
}

// newHTTPServer wires the API handler into an http.Server.
func newHTTPServer(cfg *config.Config, exp server.Exporter, logger *slog.Logger, env *Environment) *http.Server {
	handler := server.New(exp, logger, server.Options{
		Production:   cfg.Server.Production,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MaxDepth:     cfg.Generate.MaxDepth,
		DateFormat:   cfg.Generate.DateFormat,
		Now:          env.Now,
	})
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// serve runs srv on ln until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
