package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-tracker/internal/analysis"
	"activity-tracker/internal/domain"
	"activity-tracker/internal/repository"
	"activity-tracker/internal/scheduler"
	"activity-tracker/internal/util"
)

type MockSampleStore struct {
	*repository.MemoryStore
	Err error
}

func (m *MockSampleStore) Query(ctx context.Context, resourceID string, opts domain.QueryOptions) ([]domain.Sample, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.MemoryStore.Query(ctx, resourceID, opts)
}

func (m *MockSampleStore) Count(ctx context.Context) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.MemoryStore.Count(ctx)
}

func (m *MockSampleStore) DistinctResources(ctx context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.MemoryStore.DistinctResources(ctx)
}

type MockCollector struct {
	calls  int
	health scheduler.Health
	ctxErr error
}

func (m *MockCollector) CollectOnce(ctx context.Context, trigger scheduler.Trigger) scheduler.TickReport {
	m.calls++
	m.ctxErr = ctx.Err()
	return scheduler.TickReport{Trigger: trigger, Attempted: 2, Stored: 1, Absent: 1}
}

func (m *MockCollector) Health() scheduler.Health { return m.health }

func (m *MockCollector) Resources() []string { return []string{"alpha", "beta"} }

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, value interface{}) APIResponse {
	t.Helper()
	var raw struct {
		APIResponse
		Value json.RawMessage `json:"value"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	if value != nil && len(raw.Value) > 0 {
		require.NoError(t, json.Unmarshal(raw.Value, value))
	}
	return raw.APIResponse
}

func seededStore(t *testing.T) (*MockSampleStore, time.Time) {
	t.Helper()
	store := &MockSampleStore{MemoryStore: repository.NewMemoryStore()}
	base := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()
	for i, active := range []int64{10, 20, 15} {
		total := int64(100)
		require.NoError(t, store.Append(ctx, domain.Sample{ResourceID: "alpha", ObservedAt: base.Add(time.Duration(i) * time.Minute), ActiveCount: active, TotalCount: &total}))
	}
	require.NoError(t, store.Append(ctx, domain.Sample{ResourceID: "beta", ObservedAt: base, ActiveCount: 5}))
	return store, base
}

func samplesRequest(t *testing.T, resource, query string) *http.Request {
	req, err := http.NewRequest("GET", "/resources/"+resource+"/samples?"+query, nil)
	require.NoError(t, err)
	return mux.SetURLVars(req, map[string]string{"resource": resource})
}

func TestGetSamplesHandler(t *testing.T) {
	store, base := seededStore(t)

	handler := &Samples{}
	handler.Init(store, &util.TrackerLogger{})

	// case 1: ascending is the default order
	rr := httptest.NewRecorder()
	handler.GetSamplesHandler(rr, samplesRequest(t, "alpha", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var samples []domain.Sample
	resp := decodeResponse(t, rr, &samples)
	assert.True(t, resp.Status)
	assert.Equal(t, API_SUCCESS, resp.ErrorCode)
	assert.Equal(t, []int64{10, 20, 15}, activeCounts(samples))
	assert.InDelta(t, 0.1, *samples[0].ActiveRatio, 1e-9)

	// case 2: most recent two
	rr = httptest.NewRecorder()
	handler.GetSamplesHandler(rr, samplesRequest(t, "alpha", "order=desc&limit=2"))
	assert.Equal(t, http.StatusOK, rr.Code)
	samples = nil
	decodeResponse(t, rr, &samples)
	assert.Equal(t, []int64{15, 20}, activeCounts(samples))

	// case 3: time window
	rr = httptest.NewRecorder()
	q := "start=" + strconv.FormatInt(base.Add(time.Minute).Unix(), 10) + "&end=" + strconv.FormatInt(base.Add(time.Minute).Unix(), 10)
	handler.GetSamplesHandler(rr, samplesRequest(t, "alpha", q))
	samples = nil
	decodeResponse(t, rr, &samples)
	assert.Equal(t, []int64{20}, activeCounts(samples))

	// case 4: unknown resource is an empty list, not an error
	rr = httptest.NewRecorder()
	handler.GetSamplesHandler(rr, samplesRequest(t, "gamma", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	samples = nil
	resp = decodeResponse(t, rr, &samples)
	assert.True(t, resp.Status)
	assert.NotNil(t, samples)
	assert.Len(t, samples, 0)

	// case 5: invalid parameters
	for _, bad := range []string{"order=sideways", "limit=abc", "limit=-1", "start=yesterday"} {
		rr = httptest.NewRecorder()
		handler.GetSamplesHandler(rr, samplesRequest(t, "alpha", bad))
		assert.Equal(t, http.StatusBadRequest, rr.Code, bad)
		resp = decodeResponse(t, rr, nil)
		assert.False(t, resp.Status)
		assert.Equal(t, INVALID_PARAMETERS, resp.ErrorCode, bad)
	}

	// case 6: start after end
	rr = httptest.NewRecorder()
	handler.GetSamplesHandler(rr, samplesRequest(t, "alpha", "start=200&end=100"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp = decodeResponse(t, rr, nil)
	assert.Equal(t, INVALID_TIME_RANGE, resp.ErrorCode)
	assert.Contains(t, resp.Error, ErrInvalidTimeRange.Error())

	// case 7: wrong method
	req, _ := http.NewRequest("POST", "/resources/alpha/samples", nil)
	req = mux.SetURLVars(req, map[string]string{"resource": "alpha"})
	rr = httptest.NewRecorder()
	handler.GetSamplesHandler(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	resp = decodeResponse(t, rr, nil)
	assert.Equal(t, API_FAILURE, resp.ErrorCode)
	assert.Contains(t, resp.Error, "Only GET requests are supported")
}

func TestGetSamplesHandler_StoreErrors(t *testing.T) {
	store := &MockSampleStore{MemoryStore: repository.NewMemoryStore(), Err: context.Canceled}
	handler := &Samples{}
	handler.Init(store, &util.TrackerLogger{})

	rr := httptest.NewRecorder()
	handler.GetSamplesHandler(rr, samplesRequest(t, "alpha", ""))
	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	resp := decodeResponse(t, rr, nil)
	assert.Equal(t, REQUEST_CANCELLED, resp.ErrorCode)

	store.Err = errors.New("database is locked")
	rr = httptest.NewRecorder()
	handler.GetSamplesHandler(rr, samplesRequest(t, "alpha", ""))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp = decodeResponse(t, rr, nil)
	assert.Equal(t, STORE_UNAVAILABLE, resp.ErrorCode)
	assert.Contains(t, resp.Error, "database is locked")
}

func TestGetResourcesHandler(t *testing.T) {
	store, _ := seededStore(t)
	handler := &Samples{}
	handler.Init(store, &util.TrackerLogger{})

	req, _ := http.NewRequest("GET", "/resources", nil)
	rr := httptest.NewRecorder()
	handler.GetResourcesHandler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var resources []string
	decodeResponse(t, rr, &resources)
	assert.Equal(t, []string{"alpha", "beta"}, resources)
}

func TestGetActivityHandler(t *testing.T) {
	store, _ := seededStore(t)
	handler := &Samples{}
	handler.Init(store, &util.TrackerLogger{})

	req, _ := http.NewRequest("GET", "/activity?window=2", nil)
	rr := httptest.NewRecorder()
	handler.GetActivityHandler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var series []Series
	decodeResponse(t, rr, &series)
	require.Len(t, series, 2)
	assert.Equal(t, "alpha", series[0].ResourceID)
	require.Len(t, series[0].Points, 3)
	assert.Equal(t, []float64{10, 15, 17.5}, trends(series[0].Points))
	assert.Equal(t, "beta", series[1].ResourceID)

	req, _ = http.NewRequest("GET", "/activity?window=zero", nil)
	rr = httptest.NewRecorder()
	handler.GetActivityHandler(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCollectHandler(t *testing.T) {
	collector := &MockCollector{}
	handler := &Collection{}
	handler.Init(collector, &MockSampleStore{MemoryStore: repository.NewMemoryStore()}, &util.TrackerLogger{})

	// The pass is not tied to the request's cancellation.
	req, _ := http.NewRequest("POST", "/collect", nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rr := httptest.NewRecorder()
	handler.CollectHandler(rr, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, collector.calls)
	assert.NoError(t, collector.ctxErr)

	var report scheduler.TickReport
	resp := decodeResponse(t, rr, &report)
	assert.True(t, resp.Status)
	assert.Equal(t, scheduler.TriggerManual, report.Trigger)
	assert.Equal(t, 1, report.Stored)

	req, _ = http.NewRequest("GET", "/collect", nil)
	rr = httptest.NewRecorder()
	handler.CollectHandler(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, 1, collector.calls)
}

func TestHealthHandler(t *testing.T) {
	store, _ := seededStore(t)
	collector := &MockCollector{health: scheduler.Health{State: scheduler.StateIdle}}
	handler := &Collection{}
	handler.Init(collector, store, &util.TrackerLogger{})

	req, _ := http.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	handler.HealthHandler(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var report HealthReport
	decodeResponse(t, rr, &report)
	assert.Equal(t, int64(4), report.SampleCount)
	assert.Equal(t, []string{"alpha", "beta"}, report.Tracked)
	assert.Equal(t, scheduler.StateIdle, report.Collector.State)

	// case 2: sustained auth failure surfaces as 503
	collector.health = scheduler.Health{State: scheduler.StateIdle, Degraded: true, ConsecutiveAuthFailures: 4}
	rr = httptest.NewRecorder()
	handler.HealthHandler(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	report = HealthReport{}
	resp := decodeResponse(t, rr, &report)
	assert.True(t, resp.Status)
	assert.True(t, report.Collector.Degraded)
	assert.Equal(t, 4, report.Collector.ConsecutiveAuthFailures)

	// case 3: store unavailable
	store.Err = errors.New("closed")
	rr = httptest.NewRecorder()
	handler.HealthHandler(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp = decodeResponse(t, rr, nil)
	assert.False(t, resp.Status)
	assert.Equal(t, STORE_UNAVAILABLE, resp.ErrorCode)
}

func activeCounts(samples []domain.Sample) []int64 {
	out := make([]int64, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.ActiveCount)
	}
	return out
}

func trends(points []analysis.TrendPoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Trend)
	}
	return out
}
