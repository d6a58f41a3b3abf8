package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/trafficmeter/internal/api"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/clock"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/config"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/forward"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/sink"
	"github.com/gyaneshwarpardhi/trafficmeter/internal/tracker"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/traffic.yaml", "Path to YAML config")
	flag.Parse()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	// ── Sink + forwarder ─────────────────────────────────────────────────────
	snk, err := sink.DefaultRegistry().Build(cfg.Sink)
	if err != nil {
		slog.Error("failed to build sink", "type", cfg.Sink.Type, "err", err)
		os.Exit(1)
	}
	slog.Info("sink ready", "type", snk.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fwd := forward.New(ctx, snk, cfg.Forwarder)

	// ── Tracker ──────────────────────────────────────────────────────────────
	tr, err := tracker.New(cfg.Tracker, fwd, clock.Real())
	if err != nil {
		slog.Error("failed to create tracker", "err", err)
		os.Exit(1)
	}
	slog.Info("tracker ready",
		"window", cfg.Tracker.Window,
		"ttl", cfg.Tracker.TTL,
		"exclude_rules", len(cfg.Tracker.Exclude),
	)

	// ── HTTP handler + hot-reload watcher ────────────────────────────────────
	handler := api.New(tr, fwd, loader)
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	srv.RegisterOnShutdown(handler.Close)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	fwd.Drain()
	if err := snk.Close(); err != nil {
		slog.Warn("sink close failed", "err", err)
	}
	tr.Stop()
	cancel()
	slog.Info("goodbye")
}

func newLogger(conf config.LogConf) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(conf.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if conf.Format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h).With("service", "trafficmeter")
}
