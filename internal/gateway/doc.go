// Package gateway is the translation engine between the Tuya API server and
// an MQTT broker speaking the Homie convention.
//
// Three parts share one device.Registry:
//
//   - Publisher announces each device as a retained Homie tree
//     (homie/{name}/$homie, .../{node}/$type, .../{node}/{code}/$datatype, ...)
//     and publishes property values.
//   - Poller refreshes the registry and fetches every device's status on a
//     fixed interval. It is the registry's only writer.
//   - Router handles homie/+/+/+/set messages: the device segment is
//     resolved to an id and the value is written through the backend.
//
// Device topics use the device name. Status values are published on the
// same homie/{name}/{node}/{code} topic the metadata announces.
//
// Gateway ties these to an MQTT client:
//
//	gw, err := gateway.New(gateway.Options{
//	    MQTT:     mqttClient,
//	    Registry: registry,
//	    Backend:  backendClient,
//	    Products: products,
//	})
//	if err := gw.Start(ctx); err != nil { ... }
//	defer gw.Stop()
package gateway
