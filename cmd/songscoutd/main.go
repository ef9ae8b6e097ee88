package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"songscout/internal/api"
	"songscout/internal/config"
	"songscout/internal/daemon"
	"songscout/internal/identity"
	"songscout/internal/logging"
	"songscout/internal/notify"
	"songscout/internal/store"
	"songscout/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}

	hub := notify.NewHub()
	notifier := notify.NewService(cfg.Notifications, hub, logger)
	metrics := notify.NewDebouncer(
		time.Duration(cfg.Notifications.DebounceSeconds)*time.Second,
		nil,
		func() { notifier.MetricUpdate(context.Background()) },
	)
	defer metrics.Stop()

	scanner := buildScanner(cfg, st, logger)
	resolver := identity.NewResolver(st, cfg.Identity, logger)
	manager := worker.NewManager(st, resolver, notifier, metrics, cfg.Worker, logger)
	server := api.New(cfg, st, scanner, hub, logger)

	d, err := daemon.New(cfg, st, manager, server, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("songscoutd shutting down")
}
