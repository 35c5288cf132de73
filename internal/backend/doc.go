// Package backend is the HTTP client for the Tuya API server.
//
// All calls are GETs returning JSON. Object member order in the device
// list and status responses is preserved, so properties reach the Homie
// tree in the order the backend reports them.
//
// Errors wrap ErrTransport (connection failure, timeout, non-2xx) or
// ErrParse (body is not the expected JSON).
package backend
