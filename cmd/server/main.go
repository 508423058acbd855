package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"authserver/internal/platform/config"
	"authserver/internal/platform/httpserver"
	"authserver/internal/platform/logger"
	"authserver/internal/platform/metrics"
	"authserver/internal/platform/middleware"
)

// cleanupInterval is how often expired codes and tokens are swept from the
// in-memory stores.
const cleanupInterval = time.Minute

// main wires dependencies, exposes the HTTP router, and keeps the server
// lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDevSigningKey() {
		log.Warn("using the development signing key, set JWT_SIGNING_KEY outside local runs")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	app, err := build(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer app.close()

	router := chi.NewRouter()
	router.Use(middleware.RequestContext)
	router.Use(middleware.AccessLog(log))
	router.Use(middleware.Recover(log))
	app.handler.Register(router)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	router.Get("/healthz", app.health)

	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting authorization server", "addr", cfg.Server.Addr, "issuer", cfg.Server.Issuer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if app.auditWorker != nil {
		g.Go(func() error {
			if err := app.auditWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	for _, sweep := range app.sweepers {
		g.Go(func() error {
			runSweeper(gctx, log, sweep)
			return nil
		})
	}
	return g.Wait()
}

// sweeper removes expired records and reports how many it removed.
type sweeper struct {
	name  string
	sweep func(ctx context.Context, now time.Time) (int, error)
}

func runSweeper(ctx context.Context, log *slog.Logger, s sweeper) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.sweep(ctx, now)
			if err != nil {
				log.Warn("expiry sweep failed", "store", s.name, "error", err)
				continue
			}
			if n > 0 {
				log.Debug("expired records removed", "store", s.name, "count", n)
			}
		}
	}
}
