package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tuya-homie-gateway/internal/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{name}", s.handleGetDevice)
		})

		r.Get("/commands", s.handleListCommands)
	})

	return r
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Devices       int    `json:"devices"`
	LastRefresh   string `json:"last_refresh,omitempty"`
	MQTTConnected bool   `json:"mqtt_connected"`
	InfluxDB      string `json:"influxdb"`
}

// handleHealth reports "ok" while the broker connection is up and
// "degraded" otherwise. It always answers 200 so probes can read the body.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Devices:       s.registry.Count(),
		MQTTConnected: s.mqtt != nil && s.mqtt.IsConnected(),
		InfluxDB:      "disabled",
	}
	if last := s.registry.LastRefresh(); !last.IsZero() {
		resp.LastRefresh = last.UTC().Format(time.RFC3339)
	}
	if !resp.MQTTConnected {
		resp.Status = "degraded"
	}
	if s.influx != nil {
		resp.InfluxDB = "disconnected"
		if s.influx.IsConnected() {
			resp.InfluxDB = "connected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
