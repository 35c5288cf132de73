package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/tuya-homie-gateway/internal/audit"
	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/tuya-homie-gateway/internal/product"
)

// published is one recorded MQTT publish.
type published struct {
	Topic    string
	Payload  string
	Retained bool
}

// mockMQTT records publishes and subscriptions.
type mockMQTT struct {
	mu       sync.Mutex
	msgs     []published
	subs     map[string]mqtt.MessageHandler
	failOn   string // publishes to this exact topic fail
	subErr   error
	attempts int
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{subs: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failOn != "" && topic == m.failOn {
		return mqtt.ErrPublishFailed
	}
	m.msgs = append(m.msgs, published{Topic: topic, Payload: string(payload), Retained: retained})
	return nil
}

func (m *mockMQTT) Subscribe(filter string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return m.subErr
	}
	m.subs[filter] = handler
	return nil
}

func (m *mockMQTT) QoS() byte { return 1 }

// deliver routes an inbound message to the matching subscription.
func (m *mockMQTT) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.subs {
		if mqtt.MatchTopic(filter, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()

	if handler == nil {
		t.Fatalf("no subscription matches %q", topic)
	}
	if err := handler(topic, []byte(payload)); err != nil {
		t.Errorf("handler(%q) error = %v", topic, err)
	}
}

func (m *mockMQTT) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.msgs...)
}

func (m *mockMQTT) reset() {
	m.mu.Lock()
	m.msgs = nil
	m.mu.Unlock()
}

// payloadOf returns the last payload published to topic.
func (m *mockMQTT) payloadOf(topic string) (string, bool) {
	msgs := m.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Topic == topic {
			return msgs[i].Payload, true
		}
	}
	return "", false
}

// retainedOf returns what the broker would hand a new subscriber to topic:
// the payload of the last retained publish.
func (m *mockMQTT) retainedOf(topic string) (string, bool) {
	msgs := m.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Topic == topic && msgs[i].Retained {
			return msgs[i].Payload, true
		}
	}
	return "", false
}

// count returns how many publishes went to topic.
func (m *mockMQTT) count(topic string) int {
	n := 0
	for _, msg := range m.messages() {
		if msg.Topic == topic {
			n++
		}
	}
	return n
}

type setCall struct {
	ID, Code, Value string
}

// mockBackend serves the device list, per-device status and records writes.
type mockBackend struct {
	mu sync.Mutex

	devices []device.Device
	listErr error

	status    map[string][]device.PropertyValue
	statusErr map[string]error

	sets   []setCall
	setErr error
	// setBlock makes SetProperty wait for its context.
	setBlock bool
}

func (b *mockBackend) ListDevices(_ context.Context) ([]device.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]device.Device, len(b.devices))
	for i, d := range b.devices {
		out[i] = d.Clone()
	}
	return out, nil
}

func (b *mockBackend) Status(_ context.Context, id string) ([]device.PropertyValue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.statusErr[id]; err != nil {
		return nil, err
	}
	return append([]device.PropertyValue(nil), b.status[id]...), nil
}

func (b *mockBackend) SetProperty(ctx context.Context, id, code, value string) (json.RawMessage, error) {
	b.mu.Lock()
	block := b.setBlock
	b.sets = append(b.sets, setCall{ID: id, Code: code, Value: value})
	err := b.setErr
	b.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (b *mockBackend) setCalls() []setCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]setCall(nil), b.sets...)
}

func (b *mockBackend) setDevices(devices ...device.Device) {
	b.mu.Lock()
	b.devices = devices
	b.mu.Unlock()
}

func (b *mockBackend) setListErr(err error) {
	b.mu.Lock()
	b.listErr = err
	b.mu.Unlock()
}

// mockAudit records audit entries.
type mockAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *mockAudit) Create(_ context.Context, e *audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *e)
	return nil
}

func (a *mockAudit) all() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Entry(nil), a.entries...)
}

// mockSink records telemetry writes.
type mockSink struct {
	mu     sync.Mutex
	writes []string
}

func (s *mockSink) WriteProperty(_, deviceName, code string, value any, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, deviceName+"/"+code+"="+homie.FormatValue(value))
}

func (s *mockSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// recordingLogger keeps level and message of every entry.
type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *recordingLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.HasPrefix(e, entry) {
			return true
		}
	}
	return false
}

const lampProducts = `{"LampX": {"nodes": {"light": ["switch_led"], "default": "ALL"}}}`

func testProducts(t *testing.T) *product.Config {
	t.Helper()
	cfg, err := product.Parse([]byte(lampProducts))
	if err != nil {
		t.Fatalf("product.Parse() error = %v", err)
	}
	return cfg
}

func lamp() device.Device {
	return device.Device{
		ID:          "d1",
		Name:        "lamp1",
		ProductName: "LampX",
		Properties: []device.PropertyValue{
			{Code: "switch_led", Type: homie.DatatypeBoolean, Value: true},
			{Code: "bright_value", Type: homie.DatatypeInteger},
		},
	}
}

func plug() device.Device {
	return device.Device{
		ID:   "d2",
		Name: "plug",
		Properties: []device.PropertyValue{
			{Code: "switch", Type: homie.DatatypeBoolean},
		},
	}
}

// newTestRegistry builds a registry over backend and refreshes it once.
func newTestRegistry(t *testing.T, backend *mockBackend) *device.Registry {
	t.Helper()
	reg := device.NewRegistry(backend)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return reg
}

var errBackendDown = errors.New("backend down")
