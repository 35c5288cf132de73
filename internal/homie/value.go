package homie

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FormatValue renders a property value as a Homie payload.
//
//	bool                → "true" / "false"
//	integers            → decimal
//	floats              → shortest decimal that round-trips
//	json.Number         → its source text
//	string              → unchanged
//	json.RawMessage     → the raw JSON text
//	anything else       → JSON encoding, or fmt's %v if that fails
//
// nil renders as the empty string; publishers substitute UnknownValue
// where the convention requires one.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case json.RawMessage:
		return string(val)
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
