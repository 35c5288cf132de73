package homie

import (
	"encoding/json"
	"math"
	"strings"
)

// Datatype is a Homie property $datatype.
type Datatype string

// Homie v4 datatypes, plus DatatypeUnknown for properties whose type is
// neither declared by the backend nor inferable from a value.
const (
	DatatypeString  Datatype = "string"
	DatatypeInteger Datatype = "integer"
	DatatypeFloat   Datatype = "float"
	DatatypeBoolean Datatype = "boolean"
	DatatypeEnum    Datatype = "enum"
	DatatypeColor   Datatype = "color"
	DatatypeUnknown Datatype = ""
)

// String returns the value published in $datatype. Unknown is announced
// as "string" since every payload is valid text.
func (d Datatype) String() string {
	if d == DatatypeUnknown {
		return string(DatatypeString)
	}
	return string(d)
}

// ParseDatatype maps a backend type name onto a Homie datatype.
// Matching is case-insensitive; an empty name yields DatatypeUnknown and
// any unrecognised name is treated as a string.
func ParseDatatype(name string) Datatype {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DatatypeUnknown
	case "bool", "boolean":
		return DatatypeBoolean
	case "integer", "int", "value":
		return DatatypeInteger
	case "float", "number", "double":
		return DatatypeFloat
	case "enum":
		return DatatypeEnum
	case "color", "colour":
		return DatatypeColor
	default:
		return DatatypeString
	}
}

// InferDatatype guesses a datatype from a decoded value.
func InferDatatype(v any) Datatype {
	switch val := v.(type) {
	case nil:
		return DatatypeUnknown
	case bool:
		return DatatypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return DatatypeInteger
	case float32:
		return floatOrInteger(float64(val))
	case float64:
		return floatOrInteger(val)
	case json.Number:
		if strings.ContainsAny(val.String(), ".eE") {
			return DatatypeFloat
		}
		return DatatypeInteger
	default:
		return DatatypeString
	}
}

func floatOrInteger(f float64) Datatype {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return DatatypeInteger
	}
	return DatatypeFloat
}
