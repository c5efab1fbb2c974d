package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/score"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/pkg/threshold"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// Admin serves the operational HTTP endpoints which sit next to the
	// verdict listener: metrics, liveness, readiness and the active threshold
	Admin struct {
		Addr          string
		Registry      *prometheus.Registry
		Store         score.Store
		ThresholdFile string
		Log           *log.Logger

		r chi.Router
	}

	// thresholdStatus is the body of GET /threshold
	thresholdStatus struct {
		File      string   `json:"file"`
		Threshold *float64 `json:"threshold"`
		Error     string   `json:"error,omitempty"`
	}
)

// NewAdmin builds the admin router
func NewAdmin(addr string, reg *prometheus.Registry, store score.Store, thresholdFile string, logger *log.Logger) *Admin {
	a := &Admin{
		Addr:          addr,
		Registry:      reg,
		Store:         store,
		ThresholdFile: thresholdFile,
		Log:           logger,
		r:             chi.NewRouter(),
	}
	a.routes()
	return a
}

// Router returns the handler for the admin endpoints
func (a *Admin) Router() http.Handler { return a.r }

func (a *Admin) routes() {
	a.r.Use(middleware.RequestID)
	a.r.Use(middleware.Recoverer)
	a.r.Get("/healthz", a.handleHealth)
	a.r.Get("/readyz", a.handleReady)
	a.r.Get("/threshold", a.handleThreshold)
	if a.Registry != nil {
		a.r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
	}
}

// ListenAndServe serves the admin endpoints until ctx is cancelled
func (a *Admin) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve serves the admin endpoints on ln until ctx is cancelled
func (a *Admin) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: a.r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.Log.WithFields(log.Fields{
		"address": ln.Addr().String(),
	}).Info("Admin server listening")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Admin) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks the score store when it supports pinging
func (a *Admin) handleReady(w http.ResponseWriter, r *http.Request) {
	pinger, ok := a.Store.(score.Pinger)
	if !ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		a.Log.WithFields(log.Fields{
			"request": middleware.GetReqID(r.Context()),
			"error":   err.Error(),
		}).Error("Score store is not ready")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *Admin) handleThreshold(w http.ResponseWriter, r *http.Request) {
	status := thresholdStatus{File: a.ThresholdFile}
	code := http.StatusOK

	value, err := threshold.ReadFile(a.ThresholdFile)
	if err != nil {
		status.Error = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		status.Threshold = &value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		a.Log.WithFields(log.Fields{
			"request": middleware.GetReqID(r.Context()),
			"error":   err.Error(),
		}).Error("Could not write threshold status")
	}
}
