package device

import (
	"github.com/nerrad567/tuya-homie-gateway/internal/homie"
)

// Device is a backend device as last reported by the device list and the
// status poll.
//
// ID is the backend's stable identifier. Name is human-readable and is used
// as the Homie device segment. Properties keep the backend's order.
type Device struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ProductName string          `json:"product_name,omitempty"`
	Properties  []PropertyValue `json:"properties"`
}

// PropertyValue is one data point of a device.
//
// Value is nil when no value is known yet. Otherwise it holds one of
// bool, string, json.Number or json.RawMessage as decoded from the backend.
//
// Type is the backend's declared type. For an undeclared property it is
// the type inferred from the first known value and kept from then on.
type PropertyValue struct {
	Code  string         `json:"code"`
	Type  homie.Datatype `json:"type,omitempty"`
	Value any            `json:"value"`

	// inferred marks Type as derived from a value rather than declared.
	inferred bool
}

// Clone returns a copy whose Properties slice is not shared with d.
func (d Device) Clone() Device {
	out := d
	if d.Properties != nil {
		out.Properties = make([]PropertyValue, len(d.Properties))
		copy(out.Properties, d.Properties)
	}
	return out
}

// Property returns the property with the given code.
func (d Device) Property(code string) (PropertyValue, bool) {
	for _, p := range d.Properties {
		if p.Code == code {
			return p, true
		}
	}
	return PropertyValue{}, false
}

// EffectiveType returns the declared type, or one inferred from Value when
// the backend declared none.
func (p PropertyValue) EffectiveType() homie.Datatype {
	if p.Type != homie.DatatypeUnknown {
		return p.Type
	}
	return homie.InferDatatype(p.Value)
}

// MergeValues overlays values onto props and returns the result.
//
// A code already present takes the new value. Its type is settled by
// settleType, so an undeclared property keeps the type inferred from its
// first value and only ever widens integer to float. New codes are
// appended in the order given. props is not modified.
func MergeValues(props, values []PropertyValue) []PropertyValue {
	out := make([]PropertyValue, len(props), len(props)+len(values))
	copy(out, props)

	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Code] = i
	}

	for _, v := range values {
		if i, ok := index[v.Code]; ok {
			out[i].Type, out[i].inferred = settleType(out[i], v)
			out[i].Value = v.Value
			continue
		}
		v.Type, v.inferred = settleType(PropertyValue{}, v)
		index[v.Code] = len(out)
		out = append(out, v)
	}
	return out
}

// settleType returns the type cur should carry once next is applied, and
// whether that type was inferred.
//
// A declared type wins over an inferred one. An inferred type is fixed by
// the first non-nil value; later values may only widen integer to float,
// so 20 followed by 20.5 announces float once and 21 never narrows it back.
func settleType(cur, next PropertyValue) (homie.Datatype, bool) {
	if next.Type != homie.DatatypeUnknown && (cur.Type == homie.DatatypeUnknown || cur.inferred) {
		return next.Type, false
	}
	if next.Value == nil {
		return cur.Type, cur.inferred
	}

	seen := homie.InferDatatype(next.Value)
	switch {
	case cur.Type == homie.DatatypeUnknown:
		return seen, seen != homie.DatatypeUnknown
	case cur.inferred && cur.Type == homie.DatatypeInteger && seen == homie.DatatypeFloat:
		return homie.DatatypeFloat, true
	}
	return cur.Type, cur.inferred
}

// carryOver fills gaps in a freshly listed property set from the previous
// snapshot: missing values are restored and properties only learned from
// status polls are kept.
func carryOver(fresh, previous []PropertyValue) []PropertyValue {
	if len(previous) == 0 {
		return fresh
	}

	out := make([]PropertyValue, len(fresh), len(fresh)+len(previous))
	copy(out, fresh)

	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Code] = i
	}

	for _, p := range previous {
		i, ok := index[p.Code]
		if !ok {
			out = append(out, p)
			continue
		}
		if out[i].Value == nil {
			out[i].Value = p.Value
		}
		if out[i].Type == homie.DatatypeUnknown {
			out[i].Type, out[i].inferred = p.Type, p.inferred
		}
	}
	return out
}
