// Package homie encodes and decodes Homie convention topics.
//
// Topic layout:
//
//	homie/{device}/$homie                       device attributes
//	homie/{device}/{node}/$type                 node attributes
//	homie/{device}/{node}/{property}            property value
//	homie/{device}/{node}/{property}/$datatype  property attributes
//	homie/{device}/{node}/{property}/set        commands
//
// The package is pure: no I/O, no state. Segments are joined verbatim and
// are never escaped, so device names, node keys and property codes must not
// contain "/".
//
// Decode is deliberately positional. A command topic yields the device
// (segment 1) and property (segment 3); the node in segment 2 is returned
// for logging but callers must not rely on it to locate the property.
package homie
