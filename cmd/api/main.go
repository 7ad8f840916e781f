package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"activity-tracker/internal/app"
	"activity-tracker/internal/config"
	"activity-tracker/internal/router"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	tracker, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracker: %v", err)
	}
	defer tracker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appRouter := router.NewRouter(tracker.Store, tracker.Collector, tracker.Registry, tracker.Logger)
	serverOpts := router.ServerOptions{
		Addr:            cfg.Server.Listen,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tracker.Collector.Run(gctx)
	})
	g.Go(func() error {
		return router.Run(gctx, serverOpts, appRouter, tracker.Logger)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Tracker stopped with error: %v", err)
		tracker.Close()
		os.Exit(1)
	}
	log.Println("Tracker stopped.")
}
