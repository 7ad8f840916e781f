// Package app wires configuration into the store, sampler and collector
// shared by the tracker binaries.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"activity-tracker/internal/config"
	"activity-tracker/internal/domain"
	"activity-tracker/internal/repository"
	"activity-tracker/internal/sampler"
	"activity-tracker/internal/scheduler"
	"activity-tracker/internal/util"
)

type App struct {
	Config    *config.Config
	Logger    *util.TrackerLogger
	Store     domain.SampleStore
	Sampler   *sampler.RedditSampler
	Collector *scheduler.Collector
	Registry  *prometheus.Registry
}

// LoggerInitialize creates the log folder and starts the file logger.
func LoggerInitialize(cfg config.LoggingConfig) (*util.TrackerLogger, error) {
	level, err := util.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	util.SetLoggerPath(cfg.Dir)
	util.CheckAndCreateLogFolder(cfg.Dir)
	util.SetCommonLoggerAttributes(level)

	logger := &util.TrackerLogger{}
	if err := logger.Init(cfg.File, false, cfg.Console); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Service started")
	fmt.Fprintf(os.Stderr, "\n%s: activity tracker started \n", time.Now().Format(time.RFC3339))
	return logger, nil
}

func NewStore(cfg config.StorageConfig) (domain.SampleStore, error) {
	var store domain.SampleStore

	switch cfg.Driver {
	case config.StorageSQLite:
		util.CheckAndCreateLogFolder(filepath.Dir(cfg.Path))
		store = repository.NewSQLiteStore(cfg.Path)
	case config.StorageMemory:
		store = repository.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}

	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("initialize sample store: %w", err)
	}
	return store, nil
}

func NewSampler(cfg *config.Config) *sampler.RedditSampler {
	return sampler.NewRedditSampler(sampler.Options{
		PublicBaseURL: cfg.Reddit.PublicBaseURL,
		OAuthBaseURL:  cfg.Reddit.OAuthBaseURL,
		TokenURL:      cfg.Reddit.TokenURL,
		UserAgent:     cfg.Reddit.UserAgent,
		Timeout:       cfg.Collector.FetchTimeout,
		Credentials: sampler.Credentials{
			ClientID:     cfg.Reddit.ClientID,
			ClientSecret: cfg.Reddit.ClientSecret,
			Username:     cfg.Reddit.Username,
			Password:     cfg.Reddit.Password,
		},
	})
}

// New builds every component from a validated configuration. The caller
// owns Close.
func New(cfg *config.Config) (*App, error) {
	logger, err := LoggerInitialize(cfg.Logging)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(cfg.Storage)
	if err != nil {
		logger.DeInit()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := NewSampler(cfg)
	collector := scheduler.NewCollector(scheduler.Config{
		Resources:            cfg.Collector.Resources,
		Interval:             cfg.Collector.Interval,
		FetchTimeout:         cfg.Collector.FetchTimeout,
		CollectOnStart:       *cfg.Collector.CollectOnStart,
		AuthFailureThreshold: cfg.Collector.AuthFailureThreshold,
	}, s, store, logger, scheduler.NewMetrics(registry))

	mode := "anonymous"
	if s.Authenticated() {
		mode = "oauth"
	}
	logger.LogEvent(util.LOG_LEVEL_INFO, "Tracking", len(cfg.Collector.Resources), "resources with", mode, "access, storage", cfg.Storage.Driver)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Sampler:   s,
		Collector: collector,
		Registry:  registry,
	}, nil
}

func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.LogEvent(util.LOG_LEVEL_ERROR, "Closing store:", err)
	}
	a.Logger.DeInit()
}
