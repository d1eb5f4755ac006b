package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"devcred/internal/credential/handler"
	"devcred/internal/platform/config"
	"devcred/internal/platform/health"
	"devcred/internal/platform/logger"
	"devcred/pkg/platform/httputil"
	"devcred/pkg/platform/middleware/request"
	"devcred/pkg/platform/middleware/requesttime"
)

// main loads configuration, wires the credential manager and serves HTTP
// until SIGINT or SIGTERM. Business logic lives in internal packages.
func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Environment)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing devcred",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"storage", cfg.Storage.Driver,
		"ledger", cfg.Ledger.Driver,
		"signing", cfg.Signing.Method,
		"prover", proverMode(cfg.Prover),
	)

	checks := health.New(cfg.Server.Environment)
	app, err := build(ctx, cfg, log, prometheus.DefaultRegisterer, checks)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(app, checks, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully", "pending_generations", len(app.service.Pending()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newRouter(app *application, checks *health.Handler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		request.RequestID,
		request.Recovery(log),
		request.Logger(log),
		requesttime.Middleware(time.Now),
		request.BodyLimit(httputil.MaxBodyBytes),
		request.ContentTypeJSON,
		request.LatencyMiddleware(app.requestMetrics, routePattern),
	)

	checks.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	handler.New(app.service, log).Register(r)
	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func proverMode(p config.Prover) string {
	if p.URL == "" {
		return "simulated"
	}
	return "http"
}
