package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/fleetpeer/pkg/log"
	"github.com/autopeer-io/fleetpeer/pkg/options"
)

// Server serves the operator API, the live notification socket, probes and metrics.
type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

// NewServer wires the routes. live serves /ws; ready backs /readyz.
func NewServer(opts *options.HttpOptions, api MissionAPI, live http.Handler, ready func() bool) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(api, live, ready),
			ReadHeaderTimeout: 10 * time.Second,
		},
		options: opts,
	}
}

// NewRouter builds the HTTP handler tree.
func NewRouter(api MissionAPI, live http.Handler, ready func() bool) *mux.Router {
	h := &handler{api: api}
	r := mux.NewRouter()
	r.Use(logRequests)

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Readiness Probe: ready once the broker connection is up.
	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("broker not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler())
	if live != nil {
		r.Handle("/ws", live)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/missions", h.createMission).Methods(http.MethodPost)
	v1.HandleFunc("/missions", h.listMissions).Methods(http.MethodGet)
	v1.HandleFunc("/missions/stats", h.stats).Methods(http.MethodGet)
	v1.HandleFunc("/missions/{code}", h.getMission).Methods(http.MethodGet)
	v1.HandleFunc("/missions/{code}/events", h.listEvents).Methods(http.MethodGet)
	v1.HandleFunc("/missions/{code}/cancel", h.cancelMission).Methods(http.MethodPost)
	v1.HandleFunc("/vehicles/{vin}/missions", h.listVehicleMissions).Methods(http.MethodGet)
	v1.HandleFunc("/vehicles/{vin}/missions/{code}/send", h.sendMission).Methods(http.MethodPost)
	v1.HandleFunc("/vehicles/{vin}/commands", h.sendCommand).Methods(http.MethodPost)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
