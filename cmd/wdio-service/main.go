// Command wdio-service exposes internal/lifecycle.Controller as a tiny
// chi-routed HTTP surface (POST /lifecycle/prepare, /before, /before-test,
// /after, /complete) for a driving test harness to call — the idiomatic Go
// substitute for "a WebDriverIO service object with lifecycle methods",
// following cmd/api/main.go's router wiring: chiMiddleware.Logger,
// chiMiddleware.Recoverer, a logger-injecting middleware, and graceful
// errgroup shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/onkernel/wdio-native-driver/internal/options"
	"github.com/onkernel/wdio-native-driver/lib/logger"
)

func main() {
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig()
	if err != nil {
		slogger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if level, err := options.ParseLogLevel(cfg.LogLevel); err == nil {
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevelToSlog(level)}))
	}
	slogger.Info("wdio-service configuration", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := newService(slogger)

	r := chi.NewRouter()
	r.Use(
		chiMiddleware.Logger,
		chiMiddleware.Recoverer,
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxWithLogger := logger.AddToContext(r.Context(), slogger)
				next.ServeHTTP(w, r.WithContext(ctxWithLogger))
			})
		},
	)

	r.Post("/lifecycle/prepare", svc.handlePrepare)
	r.Post("/lifecycle/before", svc.handleBefore)
	r.Post("/lifecycle/before-test", svc.handleBeforeTest)
	r.Post("/lifecycle/after", svc.handleAfter)
	r.Post("/lifecycle/complete", svc.handleComplete)
	r.Post("/instances/{instance}/commands/{command}", func(w http.ResponseWriter, r *http.Request) {
		svc.handleDispatch(chi.URLParam(r, "instance"), chi.URLParam(r, "command"))(w, r)
	})
	r.Post("/instances/{instance}/console", func(w http.ResponseWriter, r *http.Request) {
		svc.handleConsoleForward(chi.URLParam(r, "instance"))(w, r)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		slogger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slogger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGrace)*time.Second)
	defer cancel()

	g, _ := errgroup.WithContext(shutdownCtx)
	g.Go(func() error { return srv.Shutdown(shutdownCtx) })
	if err := g.Wait(); err != nil {
		slogger.Error("server failed to shutdown cleanly", "err", err)
	}
}

func logLevelToSlog(l options.LogLevel) slog.Level {
	switch l {
	case options.LevelTrace, options.LevelDebug:
		return slog.LevelDebug
	case options.LevelInfo:
		return slog.LevelInfo
	case options.LevelWarn:
		return slog.LevelWarn
	case options.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
