// Command ingest runs one collection pass over the configured resources
// and exits. It shares the store with a running api process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"activity-tracker/internal/app"
	"activity-tracker/internal/config"
	"activity-tracker/internal/scheduler"
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

	log.Printf("Collecting %d resources...", len(cfg.Collector.Resources))
	report := tracker.Collector.CollectOnce(ctx, scheduler.TriggerManual)

	if report.AuthFailed {
		log.Printf("Authentication failed; nothing collected.")
		tracker.Close()
		os.Exit(1)
	}
	log.Printf("Collection complete: %d stored, %d absent, %d write errors in %s.",
		report.Stored, report.Absent, report.WriteErrors, report.Duration)
}
