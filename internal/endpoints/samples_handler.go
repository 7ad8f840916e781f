package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"activity-tracker/internal/analysis"
	"activity-tracker/internal/domain"
	"activity-tracker/internal/util"
)

// Series is one resource's smoothed history, as served by /activity.
type Series struct {
	ResourceID string                `json:"resource_id"`
	Points     []analysis.TrendPoint `json:"points"`
}

// Samples serves the read path over the store.
type Samples struct {
	Response APIResponse
	logger   *util.TrackerLogger
	store    domain.SampleStore
}

func (s *Samples) Init(store domain.SampleStore, webSlogger *util.TrackerLogger) {
	s.store = store
	s.logger = webSlogger
}

// GetSamplesHandler serves /resources/{resource}/samples. A resource with
// no rows yields an empty list.
func (s *Samples) GetSamplesHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	resource := mux.Vars(r)["resource"]
	if resource == "" {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Missing resource in URL")
		s.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	opts, err := parseQueryOptions(r)
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "While parsing query parameters. Err - ", err)
		s.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusBadRequest)
		return
	}

	samples, err := s.store.Query(r.Context(), resource, opts)
	if err != nil {
		s.storeFailure(w, "Query()", err)
		return
	}

	s.Response.WriteResultResponse(w, samples)
}

// GetResourcesHandler lists the resources that have stored samples.
func (s *Samples) GetResourcesHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	resources, err := s.store.DistinctResources(r.Context())
	if err != nil {
		s.storeFailure(w, "DistinctResources()", err)
		return
	}

	s.Response.WriteResultResponse(w, resources)
}

// GetActivityHandler returns every stored resource's chronological series
// with a rolling-mean trend.
func (s *Samples) GetActivityHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	window := analysis.DefaultWindow
	if v := r.URL.Query().Get("window"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Invalid window parameter", v)
			s.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
			return
		}
		window = parsed
	}

	resources, err := s.store.DistinctResources(r.Context())
	if err != nil {
		s.storeFailure(w, "DistinctResources()", err)
		return
	}

	series := make([]Series, 0, len(resources))
	for _, resource := range resources {
		samples, err := s.store.Query(r.Context(), resource, domain.Chronological())
		if err != nil {
			s.storeFailure(w, "Query()", err)
			return
		}
		series = append(series, Series{ResourceID: resource, Points: analysis.Trend(samples, window)})
	}

	s.Response.WriteResultResponse(w, series)
}

func (s *Samples) methodNotAllowed(w http.ResponseWriter, allowed string) {
	msg := fmt.Sprintf("method Not Allowed. Only %s requests are supported", allowed)
	s.logger.LogEvent(util.LOG_LEVEL_ERROR, msg, http.StatusMethodNotAllowed)
	s.Response.WriteErrorResponseWithStatusCode(w, errors.New(msg), http.StatusMethodNotAllowed)
}

func (s *Samples) storeFailure(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled")
		s.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
		return
	}
	s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while "+op+". Err - ", err)
	s.Response.WriteErrorResponse(w, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
}

// parseQueryOptions reads order, limit, start and end. start and end are
// Unix seconds.
func parseQueryOptions(r *http.Request) (domain.QueryOptions, error) {
	q := r.URL.Query()
	var opts domain.QueryOptions

	order, err := domain.ParseOrder(q.Get("order"))
	if err != nil {
		return opts, ErrInvalidParameters
	}
	opts.Order = order

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return opts, ErrInvalidParameters
		}
		opts.Limit = limit
	}

	for _, bound := range []struct {
		key string
		dst *time.Time
	}{{"start", &opts.Start}, {"end", &opts.End}} {
		v := q.Get(bound.key)
		if v == "" {
			continue
		}
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return opts, ErrInvalidParameters
		}
		*bound.dst = time.Unix(secs, 0).UTC()
	}

	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.Start.After(opts.End) {
		return opts, ErrInvalidTimeRange
	}
	return opts, nil
}
