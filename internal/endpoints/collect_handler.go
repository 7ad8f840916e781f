package endpoints

import (
	"context"
	"errors"
	"net/http"

	"activity-tracker/internal/domain"
	"activity-tracker/internal/scheduler"
	"activity-tracker/internal/util"
)

// Collector is the part of the scheduler the HTTP layer drives.
type Collector interface {
	CollectOnce(ctx context.Context, trigger scheduler.Trigger) scheduler.TickReport
	Health() scheduler.Health
	Resources() []string
}

type HealthReport struct {
	SampleCount int64            `json:"sample_count"`
	Tracked     []string         `json:"tracked"`
	Collector   scheduler.Health `json:"collector"`
}

// Collection serves manual collection and health.
type Collection struct {
	Response  APIResponse
	logger    *util.TrackerLogger
	collector Collector
	store     domain.SampleStore
}

func (c *Collection) Init(collector Collector, store domain.SampleStore, webSlogger *util.TrackerLogger) {
	c.collector = collector
	c.store = store
	c.logger = webSlogger
}

// CollectHandler runs one out-of-band pass. The pass outlives a client
// that disconnects mid-request.
func (c *Collection) CollectHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		c.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only POST requests are supported", http.StatusMethodNotAllowed)
		c.Response.WriteErrorResponseWithStatusCode(w, errors.New("method Not Allowed. Only POST requests are supported"), http.StatusMethodNotAllowed)
		return
	}

	c.logger.LogEvent(util.LOG_LEVEL_INFO, "Manual collection requested")
	report := c.collector.CollectOnce(context.WithoutCancel(r.Context()), scheduler.TriggerManual)

	c.Response.WriteResultResponse(w, report)
}

// HealthHandler reports row count and collector state; 503 when degraded.
func (c *Collection) HealthHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		c.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
		c.Response.WriteErrorResponseWithStatusCode(w, errors.New("method Not Allowed. Only GET requests are supported"), http.StatusMethodNotAllowed)
		return
	}

	count, err := c.store.Count(r.Context())
	if err != nil {
		c.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while Count(). Err - ", err)
		c.Response.WriteErrorResponseWithStatusCode(w, ErrStoreUnavailable, http.StatusServiceUnavailable)
		return
	}

	report := HealthReport{
		SampleCount: count,
		Tracked:     c.collector.Resources(),
		Collector:   c.collector.Health(),
	}

	if report.Collector.Degraded {
		c.logger.LogEvent(util.LOG_LEVEL_WARN, ErrCollectorDegraded.Error())
		c.Response.WriteResultResponseWithStatusCode(w, report, http.StatusServiceUnavailable)
		return
	}
	c.Response.WriteResultResponse(w, report)
}
