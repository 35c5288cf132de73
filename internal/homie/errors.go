package homie

import "errors"

// ErrMalformedTopic is returned by Decode when a command topic has fewer
// segments than base/device/node/property.
var ErrMalformedTopic = errors.New("homie: malformed topic")
