package homie

import (
	"fmt"
	"strings"
)

// DefaultBase is the Homie root topic.
const DefaultBase = "homie"

// minCommandSegments is base/device/node/property; "/set" is optional for Decode.
const minCommandSegments = 4

// Command is the result of decoding an inbound command topic.
type Command struct {
	Device   string
	Node     string
	Property string
}

// Encode builds homie/{device}/{node}/{property}[/{suffix}...].
//
// Segments are joined as-is. Callers must not pass values containing "/".
func Encode(device, node, property string, suffix ...string) string {
	return Topics{}.Property(device, node, property, suffix...)
}

// Decode extracts the device and property segments from a command topic.
//
// Segments are taken by position (1 = device, 2 = node, 3 = property),
// mirroring the homie/+/+/+/set subscription, and their content is not
// validated. Node is informational only: Decode(Encode(d, n, p)) always
// recovers d and p, while n is whatever occupied the third segment.
func Decode(topic string) (Command, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < minCommandSegments {
		return Command{}, fmt.Errorf("%w: %q has %d segments, want at least %d",
			ErrMalformedTopic, topic, len(parts), minCommandSegments)
	}
	return Command{
		Device:   parts[1],
		Node:     parts[2],
		Property: parts[3],
	}, nil
}

// Topics builds Homie topics under a configurable base.
// The zero value uses DefaultBase.
//
//	t := homie.Topics{Base: "homie"}
//	t.Device("lamp1", homie.AttrState)            // homie/lamp1/$state
//	t.Node("lamp1", "light", homie.AttrType)      // homie/lamp1/light/$type
//	t.Property("lamp1", "light", "switch_led")    // homie/lamp1/light/switch_led
type Topics struct {
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultBase
	}
	return t.Base
}

// Device returns a device attribute topic: {base}/{device}/{attr}.
func (t Topics) Device(device, attr string) string {
	return t.base() + "/" + device + "/" + attr
}

// Node returns a node attribute topic: {base}/{device}/{node}/{attr}.
func (t Topics) Node(device, node, attr string) string {
	return t.base() + "/" + device + "/" + node + "/" + attr
}

// Property returns {base}/{device}/{node}/{property} with optional suffix
// segments appended (a property attribute such as "$datatype", or "set").
func (t Topics) Property(device, node, property string, suffix ...string) string {
	topic := t.base() + "/" + device + "/" + node + "/" + property
	if len(suffix) > 0 {
		topic += "/" + strings.Join(suffix, "/")
	}
	return topic
}

// Set returns the command topic for a property.
func (t Topics) Set(device, node, property string) string {
	return t.Property(device, node, property, SetSuffix)
}

// CommandSubscription returns the wildcard filter matching every property
// command topic: {base}/+/+/+/set.
func (t Topics) CommandSubscription() string {
	return t.base() + "/+/+/+/" + SetSuffix
}

// CommandSubscription is the default-base command filter, homie/+/+/+/set.
func CommandSubscription() string {
	return Topics{}.CommandSubscription()
}
