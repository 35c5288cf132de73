package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
	"github.com/nerrad567/tuya-homie-gateway/internal/metrics"
)

// DefaultPollInterval is used when the poller is created with a zero interval.
const DefaultPollInterval = 5 * time.Second

// StatusFetcher reads live property values of one device.
type StatusFetcher interface {
	Status(ctx context.Context, id string) ([]device.PropertyValue, error)
}

// TelemetrySink receives numeric and boolean polled values.
type TelemetrySink interface {
	WriteProperty(deviceID, deviceName, code string, value any, ts time.Time)
}

// PollStats summarises one poll cycle.
type PollStats struct {
	// RefreshErr is the device list error, if the refresh failed. The cycle
	// then ran against the previous snapshot.
	RefreshErr error

	Devices   int
	Polled    int
	Failed    int
	Announced int
}

// Poller refreshes the registry and publishes device status on a fixed
// interval. It is the only writer of the registry.
type Poller struct {
	registry  *device.Registry
	backend   StatusFetcher
	publisher *Publisher
	interval  time.Duration

	telemetry TelemetrySink
	logger    Logger

	// mu orders metadata and state publishes. A re-announce holds it while
	// reading values from the registry, so it cannot overwrite a newer
	// polled value with an older one.
	mu sync.Mutex

	// announced maps device id → tree signature of the last metadata
	// publish, so new, renamed or grown devices get re-announced. Guarded
	// by mu.
	announced map[string]string
}

// NewPoller creates a poller.
func NewPoller(registry *device.Registry, backend StatusFetcher, publisher *Publisher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		registry:  registry,
		backend:   backend,
		publisher: publisher,
		interval:  interval,
		logger:    noopLogger{},
		announced: make(map[string]string),
	}
}

// SetLogger sets the logger.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// SetTelemetry sets an optional sink for polled values.
func (p *Poller) SetTelemetry(sink TelemetrySink) {
	p.telemetry = sink
}

// Interval returns the delay between cycles.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single poll cycle.
//
// A failed registry refresh is logged and the cycle continues with the
// previous snapshot. A failed status fetch skips that device only.
func (p *Poller) RunOnce(ctx context.Context) PollStats {
	start := time.Now()
	var stats PollStats

	if err := p.registry.Refresh(ctx); err != nil {
		stats.RefreshErr = err
		metrics.IncRegistryRefresh(metrics.ResultError)
		p.logger.Error("device list refresh failed, keeping previous snapshot", "error", err)
	} else {
		metrics.IncRegistryRefresh(metrics.ResultSuccess)
	}

	devices := p.registry.Devices()
	stats.Devices = len(devices)
	metrics.SetDevices(len(devices))

	for _, d := range devices {
		if ctx.Err() != nil {
			break
		}

		p.mu.Lock()
		if p.announceIfChanged(d) {
			stats.Announced++
		}
		p.mu.Unlock()

		values, err := p.backend.Status(ctx, d.ID)
		if err != nil {
			stats.Failed++
			metrics.IncDeviceStatusError()
			p.logger.Warn("status fetch failed", "device", d.Name, "id", d.ID, "error", err)
			continue
		}

		p.mu.Lock()
		updated, ok := p.registry.ApplyStatus(d.ID, values)
		if !ok {
			p.mu.Unlock()
			continue
		}

		// status may report codes the device list did not
		if p.announceIfChanged(updated) {
			stats.Announced++
		}

		if err := p.publisher.PublishState(updated, values); err != nil {
			p.logger.Warn("state publish failed", "device", d.Name, "error", err)
		}
		p.mu.Unlock()

		p.recordTelemetry(updated, values, start)
		stats.Polled++
	}

	result := metrics.ResultSuccess
	if stats.RefreshErr != nil || stats.Failed > 0 {
		result = metrics.ResultError
	}
	metrics.ObservePoll(result, time.Since(start))

	p.logger.Debug("poll cycle complete",
		"devices", stats.Devices,
		"polled", stats.Polled,
		"failed", stats.Failed,
		"duration", time.Since(start),
	)
	return stats
}

// AnnounceAll publishes metadata for every device in the registry,
// regardless of what was announced before. It returns the first error.
//
// It is safe to run alongside a poll cycle: each device's values are read
// at publish time, so the retained values are never older than the last
// state publish.
func (p *Poller) AnnounceAll() error {
	var first error
	for _, d := range p.registry.Devices() {
		p.mu.Lock()
		err := p.announce(d)
		p.mu.Unlock()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// announceIfChanged publishes metadata when d's tree differs from the last
// announcement. It reports whether metadata was published. Callers hold mu.
func (p *Poller) announceIfChanged(d device.Device) bool {
	if p.announced[d.ID] == signature(d) {
		return false
	}
	return p.announce(d) == nil
}

// announce publishes d's metadata with the values currently in the
// registry. Callers hold mu.
func (p *Poller) announce(d device.Device) error {
	if cur, ok := p.registry.Device(d.ID); ok {
		d = cur
	}

	if err := p.publisher.PublishMetadata(d); err != nil {
		p.logger.Warn("metadata publish failed", "device", d.Name, "error", err)
		delete(p.announced, d.ID)
		return err
	}
	p.announced[d.ID] = signature(d)

	p.logger.Info("announced device", "device", d.Name, "id", d.ID, "properties", len(d.Properties))
	return nil
}

// signature identifies the shape of a device's Homie tree: its name,
// product and property codes with their types.
func signature(d device.Device) string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte(0)
	b.WriteString(d.ProductName)
	for _, prop := range d.Properties {
		b.WriteByte(0)
		b.WriteString(prop.Code)
		b.WriteByte(':')
		b.WriteString(prop.EffectiveType().String())
	}
	return b.String()
}

func (p *Poller) recordTelemetry(d device.Device, values []device.PropertyValue, ts time.Time) {
	if p.telemetry == nil {
		return
	}
	for _, v := range values {
		if v.Value == nil {
			continue
		}
		switch homie.InferDatatype(v.Value) {
		case homie.DatatypeBoolean, homie.DatatypeInteger, homie.DatatypeFloat:
			p.telemetry.WriteProperty(d.ID, d.Name, v.Code, v.Value, ts)
		}
	}
}
