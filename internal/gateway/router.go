package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/tuya-homie-gateway/internal/audit"
	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
	"github.com/nerrad567/tuya-homie-gateway/internal/metrics"
)

// DefaultCommandTimeout bounds one backend write when none is configured.
const DefaultCommandTimeout = 10 * time.Second

// Commander writes a property value through the backend.
type Commander interface {
	SetProperty(ctx context.Context, id, code, value string) (json.RawMessage, error)
}

// DeviceResolver maps a Homie device segment (a device name) to its id.
type DeviceResolver interface {
	IDFor(name string) (string, bool)
}

// AuditStore persists routed commands.
type AuditStore interface {
	Create(ctx context.Context, entry *audit.Entry) error
}

// Router translates inbound .../set messages into backend writes.
// Nothing is published back to MQTT.
type Router struct {
	resolver DeviceResolver
	backend  Commander
	timeout  time.Duration

	audit  AuditStore
	logger Logger

	// ctx parents every backend call; Gateway.Stop cancels it.
	ctx context.Context
}

// NewRouter creates a router.
func NewRouter(resolver DeviceResolver, backend Commander, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Router{
		resolver: resolver,
		backend:  backend,
		timeout:  timeout,
		logger:   noopLogger{},
		ctx:      context.Background(),
	}
}

// SetLogger sets the logger.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetAudit sets an optional store that records every handled command.
func (r *Router) SetAudit(store AuditStore) {
	r.audit = store
}

// routed is what Route learned about a command, kept for logging and audit.
type routed struct {
	cmd      homie.Command
	deviceID string
	value    string
}

// Route decodes topic, resolves the device and issues the backend write.
//
// Errors wrap homie.ErrMalformedTopic, ErrInvalidPayload,
// ErrUnresolvedDevice, or the backend error.
func (r *Router) Route(ctx context.Context, topic string, payload []byte) error {
	_, err := r.route(ctx, topic, payload)
	return err
}

func (r *Router) route(ctx context.Context, topic string, payload []byte) (routed, error) {
	var rt routed

	cmd, err := homie.Decode(topic)
	if err != nil {
		return rt, err
	}
	rt.cmd = cmd

	if !utf8.Valid(payload) {
		return rt, fmt.Errorf("%w: not UTF-8", ErrInvalidPayload)
	}
	rt.value = strings.TrimSpace(string(payload))
	if rt.value == "" {
		return rt, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	id, ok := r.resolver.IDFor(cmd.Device)
	if !ok {
		return rt, fmt.Errorf("%w: %q", ErrUnresolvedDevice, cmd.Device)
	}
	rt.deviceID = id

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.backend.SetProperty(ctx, id, cmd.Property, rt.value); err != nil {
		return rt, fmt.Errorf("setting %s/%s: %w", cmd.Device, cmd.Property, err)
	}
	return rt, nil
}

// Handle is the MQTT message handler for the command subscription.
//
// Every outcome is logged and counted; the error is never returned to the
// transport so one bad message cannot affect the session.
func (r *Router) Handle(topic string, payload []byte) error {
	start := time.Now()
	rt, err := r.route(r.ctx, topic, payload)
	elapsed := time.Since(start)

	status := commandStatus(err)
	metrics.ObserveCommand(status, elapsed)

	switch status {
	case metrics.CommandResultAcked:
		r.logger.Info("command applied",
			"device", rt.cmd.Device,
			"id", rt.deviceID,
			"property", rt.cmd.Property,
			"value", rt.value,
			"duration", elapsed,
		)
	case metrics.CommandResultFailed:
		r.logger.Error("command failed",
			"device", rt.cmd.Device,
			"id", rt.deviceID,
			"property", rt.cmd.Property,
			"error", err,
		)
	default:
		r.logger.Warn("command dropped", "topic", topic, "reason", status, "error", err)
	}

	r.record(topic, rt, status, err, start, elapsed)
	return nil
}

func commandStatus(err error) string {
	switch {
	case err == nil:
		return metrics.CommandResultAcked
	case errors.Is(err, ErrUnresolvedDevice):
		return metrics.CommandResultUnresolved
	case errors.Is(err, homie.ErrMalformedTopic), errors.Is(err, ErrInvalidPayload):
		return metrics.CommandResultRejected
	default:
		return metrics.CommandResultFailed
	}
}

func (r *Router) record(topic string, rt routed, status string, err error, received time.Time, elapsed time.Duration) {
	if r.audit == nil {
		return
	}

	entry := &audit.Entry{
		Topic:      topic,
		DeviceName: rt.cmd.Device,
		DeviceID:   rt.deviceID,
		Property:   rt.cmd.Property,
		Value:      rt.value,
		Status:     status,
		DurationMS: elapsed.Milliseconds(),
		ReceivedAt: received,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.audit.Create(ctx, entry); err != nil {
		r.logger.Warn("audit write failed", "topic", topic, "error", err)
	}
}
