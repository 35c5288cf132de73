// Package api serves the gateway's read-only HTTP status surface.
//
// Routes:
//
//	GET /api/v1/health          gateway and broker status
//	GET /api/v1/devices         registry snapshot with node names
//	GET /api/v1/devices/{name}  one device with its node assignment
//	GET /api/v1/commands        command audit trail (when the database is enabled)
//	GET /metrics                Prometheus exposition
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Nothing here writes to devices. Commands only enter through MQTT.
package api
