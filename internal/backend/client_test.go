package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/config"
)

// stubNames is a fixed id → name table.
type stubNames map[string]string

func (s stubNames) NameFor(id string) (string, bool) {
	name, ok := s[id]
	return name, ok
}

// recordingServer serves canned bodies per path and records requested paths.
type recordingServer struct {
	mu     sync.Mutex
	paths  []string
	bodies map[string]string
	codes  map[string]int
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.EscapedPath())
	body, ok := s.bodies[r.URL.EscapedPath()]
	code := s.codes[r.URL.EscapedPath()]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if code == 0 {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func (s *recordingServer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func newTestClient(t *testing.T, srv *recordingServer) *Client {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c, err := New(config.BackendConfig{BaseURL: ts.URL + "/", Timeout: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative"} {
		if _, err := New(config.BackendConfig{BaseURL: raw}); err == nil {
			t.Errorf("New(%q) expected error, got nil", raw)
		}
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New(config.BackendConfig{BaseURL: "http://tuya-api:8888/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.BaseURL() != "http://tuya-api:8888" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
	if c.httpClient.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want default %v", c.httpClient.Timeout, defaultTimeout)
	}
}

func TestListDevices_ObjectProperties(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/devices": `{
			"bf01": {
				"id": "bf01",
				"name": "lamp1",
				"product_name": "Smart Bulb",
				"properties": {
					"switch_led": {"type": "Boolean", "value": true},
					"bright_value": {"type": "Integer", "value": 500},
					"colour_data": {"h": 120, "s": 1000},
					"work_mode": "white"
				}
			},
			"bf02": {"id": "bf02", "name": "plug"}
		}`,
	}}
	c := newTestClient(t, srv)

	devices, err := c.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}

	lamp := devices[0]
	if lamp.ID != "bf01" || lamp.Name != "lamp1" || lamp.ProductName != "Smart Bulb" {
		t.Errorf("lamp = %+v", lamp)
	}

	wantCodes := []string{"switch_led", "bright_value", "colour_data", "work_mode"}
	if len(lamp.Properties) != len(wantCodes) {
		t.Fatalf("properties = %+v", lamp.Properties)
	}
	for i, code := range wantCodes {
		if lamp.Properties[i].Code != code {
			t.Errorf("Properties[%d].Code = %q, want %q", i, lamp.Properties[i].Code, code)
		}
	}

	if lamp.Properties[0].Type != homie.DatatypeBoolean || lamp.Properties[0].Value != true {
		t.Errorf("switch_led = %+v", lamp.Properties[0])
	}
	if lamp.Properties[1].Type != homie.DatatypeInteger || lamp.Properties[1].Value != json.Number("500") {
		t.Errorf("bright_value = %+v", lamp.Properties[1])
	}
	if raw, ok := lamp.Properties[2].Value.(json.RawMessage); !ok || string(raw) != `{"h":120,"s":1000}` {
		t.Errorf("colour_data value = %#v", lamp.Properties[2].Value)
	}
	if lamp.Properties[3].Type != homie.DatatypeUnknown || lamp.Properties[3].Value != "white" {
		t.Errorf("work_mode = %+v", lamp.Properties[3])
	}

	if len(devices[1].Properties) != 0 {
		t.Errorf("plug properties = %+v, want none", devices[1].Properties)
	}
}

func TestListDevices_ArrayProperties(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/devices": `{"x": {"id": "x", "name": "fan", "properties": [
			{"code": "fan_speed", "type": "Enum", "value": "low"},
			{"type": "Boolean", "value": true},
			{"code": "switch", "value": false}
		]}}`,
	}}
	c := newTestClient(t, srv)

	devices, err := c.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	props := devices[0].Properties
	if len(props) != 2 {
		t.Fatalf("properties = %+v, want 2 (entry without code skipped)", props)
	}
	if props[0].Code != "fan_speed" || props[0].Type != homie.DatatypeEnum {
		t.Errorf("props[0] = %+v", props[0])
	}
	if props[1].Code != "switch" || props[1].Value != false {
		t.Errorf("props[1] = %+v", props[1])
	}
}

func TestListDevices_MissingFieldsLeftEmpty(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/devices": `{"a": {"name": "noid"}, "b": {"id": 42, "name": "numeric"}, "c": "skip"}`,
	}}
	c := newTestClient(t, srv)

	devices, err := c.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}
	if devices[0].ID != "" {
		t.Errorf("devices[0].ID = %q, want empty", devices[0].ID)
	}
	if devices[1].ID != "42" {
		t.Errorf("devices[1].ID = %q, want 42", devices[1].ID)
	}
}

func TestListDevices_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    int
		wantErr error
	}{
		{name: "server error", body: `{}`, code: http.StatusInternalServerError, wantErr: ErrTransport},
		{name: "not json", body: `<html>`, wantErr: ErrParse},
		{name: "array top level", body: `[]`, wantErr: ErrParse},
		{name: "bad properties", body: `{"a": {"id": "a", "name": "n", "properties": 5}}`, wantErr: ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &recordingServer{
				bodies: map[string]string{"/devices": tt.body},
				codes:  map[string]int{"/devices": tt.code},
			}
			c := newTestClient(t, srv)

			_, err := c.ListDevices(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ListDevices() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestListDevices_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(config.BackendConfig{BaseURL: url, Timeout: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.ListDevices(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("ListDevices() error = %v, want ErrTransport", err)
	}
}

func TestListDevices_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		ts.Close()
	})

	c, err := New(config.BackendConfig{BaseURL: ts.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.ListDevices(ctx)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ListDevices() error = %v, want ErrTransport wrapping DeadlineExceeded", err)
	}
}

func TestStatus_UsesNameAndKeepsOrder(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/status/lamp1": `{"dps": {"switch_led": true, "bright_value": 500, "mode": "white"}}`,
	}}
	c := newTestClient(t, srv)
	c.SetNameResolver(stubNames{"bf01": "lamp1"})

	values, err := c.Status(context.Background(), "bf01")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	want := []string{"switch_led", "bright_value", "mode"}
	if len(values) != len(want) {
		t.Fatalf("values = %+v", values)
	}
	for i, code := range want {
		if values[i].Code != code {
			t.Errorf("values[%d].Code = %q, want %q", i, values[i].Code, code)
		}
	}
	if values[0].Value != true {
		t.Errorf("switch_led = %#v, want true", values[0].Value)
	}
}

func TestStatus_UnknownIDUsesIDSegment(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/status/raw-id": `{"dps": {}}`,
	}}
	c := newTestClient(t, srv)
	c.SetNameResolver(stubNames{})

	if _, err := c.Status(context.Background(), "raw-id"); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
}

func TestStatus_MissingDPS(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/status/lamp1": `{"error": "device offline"}`,
	}}
	c := newTestClient(t, srv)

	values, err := c.Status(context.Background(), "lamp1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %+v, want none", values)
	}
}

func TestStatus_NotFound(t *testing.T) {
	c := newTestClient(t, &recordingServer{bodies: map[string]string{}})

	_, err := c.Status(context.Background(), "ghost")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("Status() error = %v, want StatusError 404", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("StatusError should match ErrTransport")
	}
}

func TestSetProperty_Path(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/set/lamp1/bright_value/700":       `{"ok": true}`,
		"/set/living%20room/work_mode/50%25": `{"ok": true}`,
	}}
	c := newTestClient(t, srv)
	c.SetNameResolver(stubNames{"bf01": "lamp1", "bf02": "living room"})

	ack, err := c.SetProperty(context.Background(), "bf01", "bright_value", "700")
	if err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	if string(ack) != `{"ok": true}` {
		t.Errorf("ack = %s", ack)
	}

	if _, err := c.SetProperty(context.Background(), "bf02", "work_mode", "50%"); err != nil {
		t.Fatalf("SetProperty() escaped error = %v", err)
	}

	paths := srv.requested()
	if len(paths) != 2 || paths[1] != "/set/living%20room/work_mode/50%25" {
		t.Errorf("requested = %v", paths)
	}
}

func TestSetProperty_NonJSONAck(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/set/lamp1/switch_led/true": `OK`,
	}}
	c := newTestClient(t, srv)

	if _, err := c.SetProperty(context.Background(), "lamp1", "switch_led", "true"); !errors.Is(err, ErrParse) {
		t.Errorf("SetProperty() error = %v, want ErrParse", err)
	}
}

func TestMetadata_AddressedByID(t *testing.T) {
	srv := &recordingServer{bodies: map[string]string{
		"/device/bf01": `{"id": "bf01", "ip": "10.0.0.5"}`,
	}}
	c := newTestClient(t, srv)
	c.SetNameResolver(stubNames{"bf01": "lamp1"})

	meta, err := c.Metadata(context.Background(), "bf01")
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if !json.Valid(meta) {
		t.Errorf("Metadata() = %s, want JSON", meta)
	}
}
