// Package metrics exposes gateway counters and latencies to Prometheus.
//
// Collectors are registered once by Init. Every helper is safe to call
// before Init (it does nothing), so packages can record unconditionally
// and tests never touch the global registry.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "tuyagw_"

	resultSuccess = "success"
	resultError   = "error"

	commandResultAcked      = "acked"
	commandResultFailed     = "failed"
	commandResultUnresolved = "unresolved"
	commandResultRejected   = "rejected"
)

var (
	registerOnce sync.Once

	pollCycles       *prometheus.CounterVec
	pollLatency      prometheus.Histogram
	deviceStatusErrs prometheus.Counter
	devicesKnown     prometheus.Gauge
	registryRefresh  *prometheus.CounterVec

	commandResults *prometheus.CounterVec
	commandLatency prometheus.Histogram

	mqttPublishes *prometheus.CounterVec

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
)

// Init registers the gateway collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		pollCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_cycles_total",
				Help: "Status poll cycles by result",
			},
			[]string{"result"},
		)
		pollLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_cycle_seconds",
				Help:    "Duration of a full status poll cycle",
				Buckets: prometheus.DefBuckets,
			},
		)
		deviceStatusErrs = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_status_errors_total",
				Help: "Per-device status fetches that failed",
			},
		)
		devicesKnown = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "devices",
				Help: "Devices in the current registry snapshot",
			},
		)
		registryRefresh = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registry_refresh_total",
				Help: "Device list refreshes by result",
			},
			[]string{"result"},
		)

		commandResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_results_total",
				Help: "Inbound /set commands by outcome",
			},
			[]string{"status"},
		)
		commandLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "command_latency_seconds",
				Help:    "Time from receiving a /set command to the backend ack",
				Buckets: prometheus.DefBuckets,
			},
		)

		mqttPublishes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_publishes_total",
				Help: "MQTT publishes by kind and result",
			},
			[]string{"kind", "result"},
		)

		backendRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backend_requests_total",
				Help: "Backend HTTP requests by status code",
			},
			[]string{"code"},
		)
		backendLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "backend_request_seconds",
				Help:    "Backend HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code"},
		)

		prometheus.MustRegister(
			pollCycles,
			pollLatency,
			deviceStatusErrs,
			devicesKnown,
			registryRefresh,
			commandResults,
			commandLatency,
			mqttPublishes,
			backendRequests,
			backendLatency,
		)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentTransport wraps next so each backend request is counted and timed.
// Before Init it returns next unchanged.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if backendRequests == nil || backendLatency == nil {
		return next
	}
	return promhttp.InstrumentRoundTripperCounter(backendRequests,
		promhttp.InstrumentRoundTripperDuration(backendLatency, next))
}

// ObservePoll records one poll cycle.
func ObservePoll(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pollCycles != nil {
		pollCycles.WithLabelValues(result).Inc()
	}
	if pollLatency != nil {
		pollLatency.Observe(duration.Seconds())
	}
}

// IncDeviceStatusError counts a failed per-device status fetch.
func IncDeviceStatusError() {
	if deviceStatusErrs != nil {
		deviceStatusErrs.Inc()
	}
}

// SetDevices sets the registry size gauge.
func SetDevices(n int) {
	if devicesKnown != nil {
		devicesKnown.Set(float64(n))
	}
}

// IncRegistryRefresh counts a device list refresh.
func IncRegistryRefresh(result string) {
	if result == "" {
		result = resultSuccess
	}
	if registryRefresh != nil {
		registryRefresh.WithLabelValues(result).Inc()
	}
}

// ObserveCommand records the outcome of one /set command.
func ObserveCommand(status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	if commandResults != nil {
		commandResults.WithLabelValues(status).Inc()
	}
	if commandLatency != nil && status == commandResultAcked {
		commandLatency.Observe(duration.Seconds())
	}
}

// IncPublish counts an MQTT publish of the given kind (metadata, state, status).
func IncPublish(kind string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if mqttPublishes != nil {
		mqttPublishes.WithLabelValues(kind, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	CommandResultAcked      = commandResultAcked
	CommandResultFailed     = commandResultFailed
	CommandResultUnresolved = commandResultUnresolved
	CommandResultRejected   = commandResultRejected
)
