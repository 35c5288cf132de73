package backend

import "errors"

var (
	// ErrTransport covers connection failures and non-2xx responses.
	ErrTransport = errors.New("backend: transport error")

	// ErrParse is returned when a response body is not the expected JSON.
	ErrParse = errors.New("backend: parse error")
)
