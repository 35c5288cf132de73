package gateway

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/mqtt"
)

func TestPublishMetadata_OrderAndRetain(t *testing.T) {
	client := newMockMQTT()
	pub := NewPublisher(client, testProducts(t), PublisherOptions{})

	if err := pub.PublishMetadata(lamp()); err != nil {
		t.Fatalf("PublishMetadata() error = %v", err)
	}

	want := []published{
		{"homie/lamp1/$homie", "4.0.0", true},
		{"homie/lamp1/$name", "lamp1", true},
		{"homie/lamp1/$label", "lamp1", true},
		{"homie/lamp1/$state", "ready", true},
		{"homie/lamp1/$nodes", "light,default", true},
		{"homie/lamp1/light/$name", "Light", true},
		{"homie/lamp1/light/$type", "light", true},
		{"homie/lamp1/light/switch_led/$name", "switch_led", true},
		{"homie/lamp1/light/switch_led/$datatype", "boolean", true},
		{"homie/lamp1/light/switch_led/$settable", "true", true},
		{"homie/lamp1/default/$name", "Default", true},
		{"homie/lamp1/default/$type", "default", true},
		{"homie/lamp1/default/bright_value/$name", "bright_value", true},
		{"homie/lamp1/default/bright_value/$datatype", "integer", true},
		{"homie/lamp1/default/bright_value/$settable", "true", true},
		{"homie/lamp1/light/switch_led", "true", true},
		{"homie/lamp1/default/bright_value", "unknown", true},
	}

	got := client.messages()
	if len(got) != len(want) {
		t.Fatalf("published %d messages, want %d:\n%v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPublishMetadata_Idempotent(t *testing.T) {
	client := newMockMQTT()
	pub := NewPublisher(client, testProducts(t), PublisherOptions{})

	if err := pub.PublishMetadata(lamp()); err != nil {
		t.Fatalf("PublishMetadata() error = %v", err)
	}
	first := client.messages()
	client.reset()

	if err := pub.PublishMetadata(lamp()); err != nil {
		t.Fatalf("PublishMetadata() error = %v", err)
	}
	second := client.messages()

	if len(first) != len(second) {
		t.Fatalf("republish produced %d messages, first %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("message %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPublishMetadata_ContinuesAfterError(t *testing.T) {
	client := newMockMQTT()
	client.failOn = "homie/lamp1/$name"
	pub := NewPublisher(client, testProducts(t), PublisherOptions{})

	err := pub.PublishMetadata(lamp())
	if !errors.Is(err, mqtt.ErrPublishFailed) {
		t.Fatalf("PublishMetadata() error = %v, want ErrPublishFailed", err)
	}
	if _, ok := client.payloadOf("homie/lamp1/default/bright_value"); !ok {
		t.Error("publishing stopped at the failed message")
	}
}

func TestPublishMetadata_CustomBaseAndVersion(t *testing.T) {
	client := newMockMQTT()
	pub := NewPublisher(client, nil, PublisherOptions{BaseTopic: "devices", Version: "4.0.1"})

	if err := pub.PublishMetadata(plug()); err != nil {
		t.Fatalf("PublishMetadata() error = %v", err)
	}
	if v, _ := client.payloadOf("devices/plug/$homie"); v != "4.0.1" {
		t.Errorf("$homie = %q, want 4.0.1", v)
	}
	if v, _ := client.payloadOf("devices/plug/$nodes"); v != "default" {
		t.Errorf("$nodes = %q, want default", v)
	}
}

func TestPublishState(t *testing.T) {
	client := newMockMQTT()
	pub := NewPublisher(client, testProducts(t), PublisherOptions{})

	d := lamp()
	values := []device.PropertyValue{
		{Code: "switch_led", Value: false},
		{Code: "bright_value", Value: json.Number("700")},
		{Code: "colour_data", Value: json.RawMessage(`{"h":1}`)},
		{Code: "countdown", Value: nil},
	}
	d.Properties = device.MergeValues(d.Properties, values)

	if err := pub.PublishState(d, values); err != nil {
		t.Fatalf("PublishState() error = %v", err)
	}

	want := []published{
		{"homie/lamp1/light/switch_led", "false", true},
		{"homie/lamp1/default/bright_value", "700", true},
		{"homie/lamp1/default/colour_data", `{"h":1}`, true},
	}
	got := client.messages()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// A late subscriber only sees the retained message, so a polled value must
// replace the one published with the metadata.
func TestPublishState_ReplacesAnnouncedValue(t *testing.T) {
	client := newMockMQTT()
	pub := NewPublisher(client, testProducts(t), PublisherOptions{})

	d := lamp()
	if err := pub.PublishMetadata(d); err != nil {
		t.Fatalf("PublishMetadata() error = %v", err)
	}

	for _, on := range []bool{false, true, false} {
		values := []device.PropertyValue{{Code: "switch_led", Value: on}}
		d.Properties = device.MergeValues(d.Properties, values)
		if err := pub.PublishState(d, values); err != nil {
			t.Fatalf("PublishState() error = %v", err)
		}
	}

	topic := "homie/lamp1/light/switch_led"
	if got, _ := client.retainedOf(topic); got != "false" {
		t.Errorf("retained %s = %q, want false", topic, got)
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := newMockMQTT()
	pub := NewPublisher(client, nil, PublisherOptions{})

	if err := pub.PublishDisconnected(lamp()); err != nil {
		t.Fatalf("PublishDisconnected() error = %v", err)
	}
	got := client.messages()
	if len(got) != 1 || got[0] != (published{"homie/lamp1/$state", "disconnected", true}) {
		t.Errorf("published %+v", got)
	}
}
