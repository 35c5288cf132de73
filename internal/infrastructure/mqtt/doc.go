// Package mqtt provides the MQTT transport for the Tuya Homie gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with topic, QoS and size validation
//   - Subscriptions with wildcard filters, restored after reconnect
//   - Last Will and Testament plus online/offline JSON on the gateway
//     status topic
//
// # Architecture
//
// The gateway owns a single connection. Homie discovery and state messages
// flow out; "/set" commands flow in through one wildcard subscription.
//
//	Backend REST API ↔ Gateway ↔ MQTT Broker ↔ Home automation hub
//
// The Homie topic layout itself lives in package homie; this package only
// knows MQTT topic rules (ValidateTopicName, ValidateTopicFilter,
// MatchTopic).
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Gateway.StatusTopic)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("homie/+/+/+/set", 1,
//	    func(topic string, payload []byte) error {
//	        return router.Route(ctx, topic, payload)
//	    })
//
//	client.Publish("homie/lamp1/$state", []byte("ready"), client.QoS(), true)
package mqtt
