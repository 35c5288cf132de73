package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/config"
)

const (
	// defaultTimeout applies when the config leaves backend.timeout at zero.
	defaultTimeout = 10 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 << 20
)

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// NameResolver maps a device id to the name the backend expects in URLs.
// The device registry satisfies it.
type NameResolver interface {
	NameFor(id string) (string, bool)
}

// Client talks to the Tuya API server's REST interface.
//
// Endpoints:
//
//	GET /devices                     device list
//	GET /status/{name}               {"dps": {code: value}}
//	GET /set/{name}/{code}/{value}   write one data point
//	GET /device/{id}                 device metadata
//
// The status and set endpoints address devices by name. Callers pass ids;
// the client resolves them through the NameResolver and falls back to the
// id when no name is known.
type Client struct {
	baseURL    string
	httpClient *http.Client

	names   NameResolver
	namesMu sync.RWMutex

	logger Logger
}

// New creates a client for cfg.BaseURL.
func New(cfg config.BackendConfig) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     noopLogger{},
	}, nil
}

// SetNameResolver sets the id → name lookup used for URL segments.
func (c *Client) SetNameResolver(r NameResolver) {
	c.namesMu.Lock()
	c.names = r
	c.namesMu.Unlock()
}

// SetTransport replaces the HTTP transport, e.g. with an instrumented one.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// SetLogger sets the logger for request tracing.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// BaseURL returns the API server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// nameSegment returns the URL segment for a device id.
func (c *Client) nameSegment(id string) string {
	c.namesMu.RLock()
	r := c.names
	c.namesMu.RUnlock()

	if r != nil {
		if name, ok := r.NameFor(id); ok {
			return name
		}
	}
	return id
}

// ListDevices fetches GET /devices.
func (c *Client) ListDevices(ctx context.Context) ([]device.Device, error) {
	body, err := c.get(ctx, "/devices")
	if err != nil {
		return nil, err
	}
	devices, err := decodeDevices(body)
	if err != nil {
		return nil, fmt.Errorf("%w: devices: %w", ErrParse, err)
	}
	return devices, nil
}

// Status fetches GET /status/{name} and returns the dps values in order.
// A response without "dps" yields no values.
func (c *Client) Status(ctx context.Context, id string) ([]device.PropertyValue, error) {
	body, err := c.get(ctx, "/status/"+url.PathEscape(c.nameSegment(id)))
	if err != nil {
		return nil, err
	}
	values, err := decodeStatus(body)
	if err != nil {
		return nil, fmt.Errorf("%w: status of %s: %w", ErrParse, id, err)
	}
	return values, nil
}

// SetProperty issues GET /set/{name}/{code}/{value} and returns the JSON ack.
func (c *Client) SetProperty(ctx context.Context, id, code, value string) (json.RawMessage, error) {
	path := "/set/" + url.PathEscape(c.nameSegment(id)) +
		"/" + url.PathEscape(code) +
		"/" + url.PathEscape(value)

	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: set %s/%s: response is not JSON", ErrParse, id, code)
	}
	return json.RawMessage(body), nil
}

// Metadata fetches GET /device/{id}. The device is addressed by id here.
func (c *Client) Metadata(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := c.get(ctx, "/device/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: metadata of %s: response is not JSON", ErrParse, id)
	}
	return json.RawMessage(body), nil
}

// get performs a GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, path, ctxErr)
		}
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrTransport, path, err)
	}

	c.logger.Debug("backend request",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// StatusError is a non-2xx response. It matches ErrTransport.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: GET %s: HTTP %d", e.Path, e.Code)
	}
	return fmt.Sprintf("backend: GET %s: HTTP %d: %s", e.Path, e.Code, e.Body)
}

// Is makes errors.Is(err, ErrTransport) true for status errors.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransport
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
