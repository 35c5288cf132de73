package homie

import (
	"unicode"
	"unicode/utf8"
)

// Version is the Homie convention version announced in $homie.
const Version = "4.0.0"

// SetSuffix is the final segment of a property command topic.
const SetSuffix = "set"

// Device attributes.
const (
	AttrHomie = "$homie"
	AttrName  = "$name"
	AttrLabel = "$label"
	AttrState = "$state"
	AttrNodes = "$nodes"
)

// Node attributes.
const (
	AttrType = "$type"
)

// Property attributes.
const (
	AttrDatatype = "$datatype"
	AttrSettable = "$settable"
)

// Device lifecycle states published on $state.
const (
	StateReady        = "ready"
	StateDisconnected = "disconnected"
)

// UnknownValue is published for a property whose value is not known yet.
const UnknownValue = "unknown"

// DisplayName turns a node key into a display name by upper-casing its
// first letter: "light" → "Light".
func DisplayName(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

// IsValidID reports whether id is a valid Homie topic ID: lower-case
// letters, digits and hyphens, not starting with a hyphen.
//
// The gateway publishes backend names as-is; this is used to warn about
// names other Homie controllers may reject.
func IsValidID(id string) bool {
	if id == "" || id[0] == '-' {
		return false
	}
	for i := 0; i < len(id); i++ {
		b := id[i]
		if (b < 'a' || b > 'z') && (b < '0' || b > '9') && b != '-' {
			return false
		}
	}
	return true
}
