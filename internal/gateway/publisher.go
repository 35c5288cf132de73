package gateway

import (
	"fmt"
	"strings"

	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
	"github.com/nerrad567/tuya-homie-gateway/internal/metrics"
	"github.com/nerrad567/tuya-homie-gateway/internal/product"
)

// Publish kinds used as the metrics label.
const (
	kindMetadata = "metadata"
	kindState    = "state"
	kindStatus   = "status"
)

// PublisherOptions configures the topic layout.
type PublisherOptions struct {
	// BaseTopic is the Homie root. Empty means homie.DefaultBase.
	BaseTopic string

	// Version is announced as $homie. Empty means homie.Version.
	Version string
}

// Publisher turns devices into Homie messages. Every message is retained:
// values share their topic with the announce-time value, and a non-retained
// publish would leave late subscribers with the stale one.
type Publisher struct {
	client   MQTTClient
	products *product.Config
	topics   homie.Topics
	version  string
}

// NewPublisher creates a publisher. A nil products config uses product.Default().
func NewPublisher(client MQTTClient, products *product.Config, opts PublisherOptions) *Publisher {
	if products == nil {
		products = product.Default()
	}
	version := opts.Version
	if version == "" {
		version = homie.Version
	}
	return &Publisher{
		client:   client,
		products: products,
		topics:   homie.Topics{Base: opts.BaseTopic},
		version:  version,
	}
}

// Topics returns the topic builder in use.
func (p *Publisher) Topics() homie.Topics {
	return p.topics
}

// batch publishes a sequence of messages, carrying on after failures and
// keeping the first error.
type batch struct {
	client   MQTTClient
	kind     string
	retained bool
	err      error
}

func (b *batch) publish(topic, payload string) {
	err := b.client.Publish(topic, []byte(payload), b.client.QoS(), b.retained)
	metrics.IncPublish(b.kind, err)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("publishing %s: %w", topic, err)
	}
}

// PublishMetadata announces the full Homie tree for d, retained.
//
// All attribute messages go out first (device, then each node followed by
// its properties), then one value message per property. A property with no
// known value is published as "unknown".
func (p *Publisher) PublishMetadata(d device.Device) error {
	assignment := p.products.Assign(d.ProductName, d.Properties)
	b := &batch{client: p.client, kind: kindMetadata, retained: true}
	t := p.topics

	b.publish(t.Device(d.Name, homie.AttrHomie), p.version)
	b.publish(t.Device(d.Name, homie.AttrName), d.Name)
	b.publish(t.Device(d.Name, homie.AttrLabel), d.Name)
	b.publish(t.Device(d.Name, homie.AttrState), homie.StateReady)
	b.publish(t.Device(d.Name, homie.AttrNodes), strings.Join(assignment.Nodes(), ","))

	for _, node := range assignment {
		b.publish(t.Node(d.Name, node.Name, homie.AttrName), homie.DisplayName(node.Name))
		b.publish(t.Node(d.Name, node.Name, homie.AttrType), node.Name)

		for _, prop := range node.Properties {
			b.publish(t.Property(d.Name, node.Name, prop.Code, homie.AttrName), prop.Code)
			b.publish(t.Property(d.Name, node.Name, prop.Code, homie.AttrDatatype), prop.EffectiveType().String())
			b.publish(t.Property(d.Name, node.Name, prop.Code, homie.AttrSettable), "true")
		}
	}

	for _, node := range assignment {
		for _, prop := range node.Properties {
			payload := homie.UnknownValue
			if prop.Value != nil {
				payload = homie.FormatValue(prop.Value)
			}
			b.publish(t.Property(d.Name, node.Name, prop.Code), payload)
		}
	}

	return b.err
}

// PublishState publishes polled values of d, retained, one message per
// property, on the same homie/{device}/{node}/{property} topics the metadata
// uses.
//
// d must already contain the values (see device.Registry.ApplyStatus) so
// the node assignment covers every code. Values that are nil are skipped.
func (p *Publisher) PublishState(d device.Device, values []device.PropertyValue) error {
	assignment := p.products.Assign(d.ProductName, d.Properties)
	b := &batch{client: p.client, kind: kindState, retained: true}

	for _, v := range values {
		if v.Value == nil {
			continue
		}
		node, ok := assignment.NodeFor(v.Code)
		if !ok {
			node = product.DefaultNode
		}
		b.publish(p.topics.Property(d.Name, node, v.Code), homie.FormatValue(v.Value))
	}

	return b.err
}

// PublishDisconnected marks d as cleanly disconnected.
func (p *Publisher) PublishDisconnected(d device.Device) error {
	b := &batch{client: p.client, kind: kindStatus, retained: true}
	b.publish(p.topics.Device(d.Name, homie.AttrState), homie.StateDisconnected)
	return b.err
}
