package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"activity-tracker/internal/domain"
	"activity-tracker/internal/endpoints"
	"activity-tracker/internal/util"
)

type ServerOptions struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func NewRouter(store domain.SampleStore, collector endpoints.Collector, gatherer prometheus.Gatherer, webSlogger *util.TrackerLogger) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, store, collector, gatherer, webSlogger)

	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, store domain.SampleStore, collector endpoints.Collector, gatherer prometheus.Gatherer, webSlogger *util.TrackerLogger) {

	samplesHandler := &endpoints.Samples{}
	samplesHandler.Init(store, webSlogger)

	collectionHandler := &endpoints.Collection{}
	collectionHandler.Init(collector, store, webSlogger)

	r.HandleFunc("/resources", samplesHandler.GetResourcesHandler).Methods("GET")
	r.HandleFunc("/resources/{resource}/samples", samplesHandler.GetSamplesHandler).Methods("GET")
	r.HandleFunc("/activity", samplesHandler.GetActivityHandler).Methods("GET")
	r.HandleFunc("/collect", collectionHandler.CollectHandler).Methods("POST")
	r.HandleFunc("/health", collectionHandler.HealthHandler).Methods("GET")

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
}

func NewServer(opts ServerOptions, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts down within
// opts.ShutdownTimeout.
func Run(ctx context.Context, opts ServerOptions, handler http.Handler, webSlogger *util.TrackerLogger) error {
	server := NewServer(opts, handler)

	errCh := make(chan error, 1)
	go func() {
		webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Listening on", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Shutting down server...")
	if err := gracefulShutdown(server, opts.ShutdownTimeout); err != nil {
		webSlogger.LogEvent(util.LOG_LEVEL_ERROR, "Server stopped with error:", err)
		return err
	}
	webSlogger.LogEvent(util.LOG_LEVEL_INFO, "Server stopped gracefully.")
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

func loggingMiddleware(logger *util.TrackerLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s (%s)", r.Method, r.RequestURI, time.Since(start)))
		})
	}
}
