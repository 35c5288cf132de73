package influxdb

import (
	"encoding/json"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement polled values are written to.
const Measurement = "tuya_property"

// WriteProperty records one polled value. Booleans are stored as 0/1 so a
// property keeps a single float field type; non-numeric values are dropped.
//
// It satisfies gateway.TelemetrySink.
func (c *Client) WriteProperty(deviceID, deviceName, code string, value any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	point, ok := propertyPoint(deviceID, deviceName, code, value, ts)
	if !ok {
		return
	}
	c.writeAPI.WritePoint(point)
}

func propertyPoint(deviceID, deviceName, code string, value any, ts time.Time) (*write.Point, bool) {
	f, ok := numericValue(value)
	if !ok {
		return nil, false
	}
	return write.NewPoint(Measurement,
		map[string]string{
			"device_id": deviceID,
			"device":    deviceName,
			"property":  code,
		},
		map[string]any{"value": f},
		ts,
	), true
}

// numericValue converts the value types the backend decoder produces.
func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}
