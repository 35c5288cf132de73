package backend

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
	"github.com/nerrad567/tuya-homie-gateway/internal/ordered"
)

// deviceEntry is one value of the /devices object.
type deviceEntry struct {
	ID          json.RawMessage `json:"id"`
	Name        json.RawMessage `json:"name"`
	ProductName json.RawMessage `json:"product_name"`
	Properties  json.RawMessage `json:"properties"`
}

// propertyEntry is one element of an array-shaped properties list.
type propertyEntry struct {
	Code  string          `json:"code"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// decodeDevices parses {"<key>": {"id", "name", "product_name", "properties"}}.
//
// Entries missing id or name are returned with empty fields; the registry
// skips them.
func decodeDevices(body []byte) ([]device.Device, error) {
	top, err := ordered.Decode(body)
	if err != nil {
		return nil, err
	}

	devices := make([]device.Device, 0, len(top))
	for _, member := range top {
		if !ordered.IsObject(member.Value) {
			continue
		}

		var entry deviceEntry
		if err := json.Unmarshal(member.Value, &entry); err != nil {
			return nil, fmt.Errorf("device %q: %w", member.Key, err)
		}

		props, err := decodeProperties(entry.Properties)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", member.Key, err)
		}

		devices = append(devices, device.Device{
			ID:          text(entry.ID),
			Name:        text(entry.Name),
			ProductName: text(entry.ProductName),
			Properties:  props,
		})
	}
	return devices, nil
}

// decodeProperties accepts either shape the API server emits:
//
//	{"switch_led": {"type": "Boolean", "value": true}, "bright_value": 500}
//	[{"code": "switch_led", "type": "Boolean", "value": true}]
func decodeProperties(raw json.RawMessage) ([]device.PropertyValue, error) {
	switch {
	case len(raw) == 0 || string(raw) == "null":
		return nil, nil
	case ordered.IsArray(raw):
		return decodePropertyList(raw)
	case ordered.IsObject(raw):
		return decodePropertyObject(raw)
	default:
		return nil, fmt.Errorf("properties: want object or array")
	}
}

func decodePropertyList(raw json.RawMessage) ([]device.PropertyValue, error) {
	var entries []propertyEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}

	props := make([]device.PropertyValue, 0, len(entries))
	for _, e := range entries {
		if e.Code == "" {
			continue
		}
		v, err := ordered.Scalar(e.Value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", e.Code, err)
		}
		props = append(props, device.PropertyValue{
			Code:  e.Code,
			Type:  homie.ParseDatatype(e.Type),
			Value: v,
		})
	}
	return props, nil
}

func decodePropertyObject(raw json.RawMessage) ([]device.PropertyValue, error) {
	obj, err := ordered.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}

	props := make([]device.PropertyValue, 0, len(obj))
	for _, m := range obj {
		p, err := decodePropertyValue(m.Key, m.Value)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

// decodePropertyValue reads a descriptor ({"type", "value"}) or a bare value.
// An object without "type" or "value" keys is a composite value.
func decodePropertyValue(code string, raw json.RawMessage) (device.PropertyValue, error) {
	if ordered.IsObject(raw) {
		obj, err := ordered.Decode(raw)
		if err != nil {
			return device.PropertyValue{}, fmt.Errorf("property %q: %w", code, err)
		}
		typeRaw, hasType := obj.Get("type")
		valueRaw, hasValue := obj.Get("value")
		if hasType || hasValue {
			v, err := ordered.Scalar(valueRaw)
			if err != nil {
				return device.PropertyValue{}, fmt.Errorf("property %q: %w", code, err)
			}
			return device.PropertyValue{
				Code:  code,
				Type:  homie.ParseDatatype(text(typeRaw)),
				Value: v,
			}, nil
		}
	}

	v, err := ordered.Scalar(raw)
	if err != nil {
		return device.PropertyValue{}, fmt.Errorf("property %q: %w", code, err)
	}
	return device.PropertyValue{Code: code, Value: v}, nil
}

// decodeStatus parses {"dps": {code: value}} keeping code order.
func decodeStatus(body []byte) ([]device.PropertyValue, error) {
	top, err := ordered.Decode(body)
	if err != nil {
		return nil, err
	}

	dps, ok := top.Get("dps")
	if !ok || string(dps) == "null" {
		return nil, nil
	}
	if !ordered.IsObject(dps) {
		return nil, fmt.Errorf("dps: want object")
	}

	obj, err := ordered.Decode(dps)
	if err != nil {
		return nil, fmt.Errorf("dps: %w", err)
	}

	values := make([]device.PropertyValue, 0, len(obj))
	for _, m := range obj {
		v, err := ordered.Scalar(m.Value)
		if err != nil {
			return nil, fmt.Errorf("dps %q: %w", m.Key, err)
		}
		values = append(values, device.PropertyValue{Code: m.Key, Value: v})
	}
	return values, nil
}

// text renders a raw JSON scalar as a plain string: strings unquoted,
// numbers as written, null or absent as "".
func text(raw json.RawMessage) string {
	v, err := ordered.Scalar(raw)
	if err != nil || v == nil {
		return ""
	}
	return homie.FormatValue(v)
}
