package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"activity-tracker/internal/domain"
	"activity-tracker/internal/util"
)

const (
	DefaultInterval             = 10 * time.Minute
	DefaultFetchTimeout         = 5 * time.Second
	DefaultAuthFailureThreshold = 3
)

type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// TickReport summarizes one collection pass.
type TickReport struct {
	Trigger     Trigger       `json:"trigger"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Attempted   int           `json:"attempted"`
	Stored      int           `json:"stored"`
	Absent      int           `json:"absent"`
	WriteErrors int           `json:"write_errors"`
	AuthFailed  bool          `json:"auth_failed"`
}

// Health is the operator-facing view of the collector.
type Health struct {
	State                   State       `json:"state"`
	Degraded                bool        `json:"degraded"`
	ConsecutiveAuthFailures int         `json:"consecutive_auth_failures"`
	LastAuthError           string      `json:"last_auth_error,omitempty"`
	LastReport              *TickReport `json:"last_report,omitempty"`
}

type Config struct {
	Resources            []string
	Interval             time.Duration
	FetchTimeout         time.Duration
	CollectOnStart       bool
	AuthFailureThreshold int
}

// Collector drives the sampler over the tracked resources and appends
// what it gets to the store. It is the only writer.
type Collector struct {
	cfg     Config
	sampler domain.Sampler
	store   domain.SampleStore
	logger  *util.TrackerLogger
	metrics *Metrics

	inFlight atomic.Int32

	mu            sync.Mutex
	authFailures  int
	lastAuthError string
	lastReport    *TickReport
}

func NewCollector(cfg Config, sampler domain.Sampler, store domain.SampleStore, logger *util.TrackerLogger, metrics *Metrics) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.AuthFailureThreshold <= 0 {
		cfg.AuthFailureThreshold = DefaultAuthFailureThreshold
	}
	if logger == nil {
		logger = &util.TrackerLogger{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	cfg.Resources = append([]string(nil), cfg.Resources...)

	return &Collector{cfg: cfg, sampler: sampler, store: store, logger: logger, metrics: metrics}
}

func (c *Collector) Resources() []string {
	return append([]string(nil), c.cfg.Resources...)
}

// Run collects on every interval until ctx is cancelled. Failures inside
// a pass never end the loop.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.LogFields(util.LOG_LEVEL_INFO, "collector started",
		zap.Strings("resources", c.cfg.Resources), zap.Duration("interval", c.cfg.Interval))

	if c.cfg.CollectOnStart {
		c.CollectOnce(ctx, TriggerScheduled)
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.LogEvent(util.LOG_LEVEL_INFO, "collector stopped")
			return nil
		case <-ticker.C:
			c.CollectOnce(ctx, TriggerScheduled)
		}
	}
}

// CollectOnce runs a single pass. It may overlap with other passes.
func (c *Collector) CollectOnce(ctx context.Context, trigger Trigger) (report TickReport) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	report = TickReport{Trigger: trigger, StartedAt: time.Now()}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		c.metrics.collectionTiming.Observe(report.Duration.Seconds())
		c.finish(report)
	}()

	token, err := c.sampler.Authenticate(ctx)
	if err != nil {
		report.AuthFailed = true
		c.recordAuth(err)
		c.logger.LogFields(util.LOG_LEVEL_ERROR, "authentication failed, skipping pass",
			zap.String("trigger", string(trigger)), zap.Error(err))
		return report
	}
	c.recordAuth(nil)

	for _, resource := range c.cfg.Resources {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
		sample, err := c.sampler.Fetch(fetchCtx, token, resource)
		cancel()
		if err != nil {
			report.Absent++
			c.metrics.absent.WithLabelValues(resource, absentReason(err)).Inc()
			c.logger.LogFields(util.LOG_LEVEL_WARN, "no sample this pass",
				zap.String("resource", resource), zap.Error(err))
			continue
		}

		if err := c.store.Append(ctx, sample); err != nil {
			report.WriteErrors++
			c.metrics.writeErrors.Inc()
			c.logger.LogFields(util.LOG_LEVEL_ERROR, "dropping sample, store write failed",
				zap.String("resource", resource), zap.Error(err))
			continue
		}
		report.Stored++
		c.metrics.stored.WithLabelValues(resource).Inc()
		c.logger.LogFields(util.LOG_LEVEL_DEBUG, "sample stored",
			zap.String("resource", resource), zap.Int64("active", sample.ActiveCount))
	}

	c.logger.LogFields(util.LOG_LEVEL_INFO, "collection pass complete",
		zap.String("trigger", string(trigger)),
		zap.Int("stored", report.Stored),
		zap.Int("absent", report.Absent),
		zap.Int("write_errors", report.WriteErrors))
	return report
}

func (c *Collector) recordAuth(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.authFailures = 0
		c.lastAuthError = ""
		c.metrics.authConsecutive.Set(0)
		return
	}
	c.authFailures++
	c.lastAuthError = err.Error()
	c.metrics.authFailures.Inc()
	c.metrics.authConsecutive.Set(float64(c.authFailures))
}

func (c *Collector) finish(report TickReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastReport = &report
}

func (c *Collector) State() State {
	if c.inFlight.Load() > 0 {
		return StateCollecting
	}
	return StateIdle
}

func (c *Collector) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := Health{
		State:                   c.State(),
		ConsecutiveAuthFailures: c.authFailures,
		LastAuthError:           c.lastAuthError,
		Degraded:                c.authFailures >= c.cfg.AuthFailureThreshold,
	}
	if c.lastReport != nil {
		r := *c.lastReport
		h.LastReport = &r
	}
	return h
}
