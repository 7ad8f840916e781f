package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"activity-tracker/internal/util"
)

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Collector CollectorConfig `yaml:"collector"`
	Reddit    RedditConfig    `yaml:"reddit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	// Driver is sqlite or memory.
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// CollectorConfig holds the tracked resources. This list is the only
// source of what gets collected.
type CollectorConfig struct {
	Resources            []string      `yaml:"resources"`
	Interval             time.Duration `yaml:"interval"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	CollectOnStart       *bool         `yaml:"collect_on_start"`
	AuthFailureThreshold int           `yaml:"auth_failure_threshold"`
}

type RedditConfig struct {
	PublicBaseURL string `yaml:"public_base_url"`
	OAuthBaseURL  string `yaml:"oauth_base_url"`
	TokenURL      string `yaml:"token_url"`
	UserAgent     string `yaml:"user_agent"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
}

type LoggingConfig struct {
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Load reads path, applies defaults and environment overrides, then
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("REDDIT_CLIENT_ID", &c.Reddit.ClientID)
	set("REDDIT_CLIENT_SECRET", &c.Reddit.ClientSecret)
	set("REDDIT_USERNAME", &c.Reddit.Username)
	set("REDDIT_PASSWORD", &c.Reddit.Password)
	set("REDDIT_USER_AGENT", &c.Reddit.UserAgent)
	set("TRACKER_DB_PATH", &c.Storage.Path)
	set("TRACKER_LISTEN", &c.Server.Listen)

	if v, ok := lookup("TRACKER_RESOURCES"); ok && v != "" {
		c.Collector.Resources = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 25 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageSQLite
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./db/reddit_activity.db"
	}
	if c.Collector.Interval == 0 {
		c.Collector.Interval = 10 * time.Minute
	}
	if c.Collector.FetchTimeout == 0 {
		c.Collector.FetchTimeout = 5 * time.Second
	}
	if c.Collector.CollectOnStart == nil {
		on := true
		c.Collector.CollectOnStart = &on
	}
	if c.Collector.AuthFailureThreshold == 0 {
		c.Collector.AuthFailureThreshold = 3
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "./log"
	}
	if c.Logging.File == "" {
		c.Logging.File = "tracker.log"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if len(c.Collector.Resources) == 0 {
		return fmt.Errorf("collector.resources must list at least one resource")
	}
	seen := make(map[string]struct{}, len(c.Collector.Resources))
	for _, r := range c.Collector.Resources {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("collector.resources contains an empty name")
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("collector.resources lists %q twice", r)
		}
		seen[r] = struct{}{}
	}
	if c.Collector.Interval < 0 {
		return fmt.Errorf("collector.interval must be positive")
	}
	if c.Collector.FetchTimeout < 0 || c.Collector.FetchTimeout >= c.Collector.Interval {
		return fmt.Errorf("collector.fetch_timeout must be positive and shorter than collector.interval")
	}
	switch c.Storage.Driver {
	case StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, memory", c.Storage.Driver)
	}

	creds := []string{c.Reddit.ClientID, c.Reddit.ClientSecret, c.Reddit.Username, c.Reddit.Password}
	set := 0
	for _, v := range creds {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(creds) {
		return fmt.Errorf("reddit credentials are incomplete: client_id, client_secret, username and password must all be set")
	}

	if _, err := util.ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// HasCredentials reports whether authenticated collection is configured.
func (c *Config) HasCredentials() bool {
	return c.Reddit.ClientID != ""
}
