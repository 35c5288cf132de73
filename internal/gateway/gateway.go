package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/tuya-homie-gateway/internal/product"
)

// MQTTClient is the subset of the MQTT transport the gateway uses.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(filter string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Backend is the device-control API as seen by the gateway.
type Backend interface {
	StatusFetcher
	Commander
}

// Logger defines the logging interface used across the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the gateway's collaborators and settings.
type Options struct {
	MQTT     MQTTClient
	Registry *device.Registry
	Backend  Backend
	Products *product.Config

	Publisher      PublisherOptions
	PollInterval   time.Duration
	CommandTimeout time.Duration

	// Optional.
	Telemetry TelemetrySink
	Audit     AuditStore
	Logger    Logger
}

// Gateway wires the registry, publisher, poller and router to MQTT.
//
// Lifecycle: New → Start (announce, subscribe, poll) → Stop (cancel polling,
// publish $state=disconnected). Start and Stop are each effective once.
type Gateway struct {
	mqtt      MQTTClient
	registry  *device.Registry
	publisher *Publisher
	poller    *Poller
	router    *Router
	logger    Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New validates opts and builds the components.
func New(opts Options) (*Gateway, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("gateway: mqtt client is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("gateway: registry is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("gateway: backend is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	publisher := NewPublisher(opts.MQTT, opts.Products, opts.Publisher)

	poller := NewPoller(opts.Registry, opts.Backend, publisher, opts.PollInterval)
	poller.SetLogger(logger)
	if opts.Telemetry != nil {
		poller.SetTelemetry(opts.Telemetry)
	}

	router := NewRouter(opts.Registry, opts.Backend, opts.CommandTimeout)
	router.SetLogger(logger)
	if opts.Audit != nil {
		router.SetAudit(opts.Audit)
	}

	return &Gateway{
		mqtt:      opts.MQTT,
		registry:  opts.Registry,
		publisher: publisher,
		poller:    poller,
		router:    router,
		logger:    logger,
	}, nil
}

// Start announces every known device, subscribes to commands and starts
// the poller. It returns once the poller goroutine is running.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started || g.stopped {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.router.ctx = runCtx

	if err := g.poller.AnnounceAll(); err != nil {
		g.logger.Warn("initial metadata announce incomplete", "error", err)
	}

	filter := g.publisher.Topics().CommandSubscription()
	if err := g.mqtt.Subscribe(filter, g.mqtt.QoS(), g.router.Handle); err != nil {
		cancel()
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	g.logger.Info("subscribed to commands", "topic", filter)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.poller.Run(runCtx)
	}()

	g.cancel = cancel
	g.started = true

	g.logger.Info("gateway started",
		"devices", g.registry.Count(),
		"poll_interval", g.poller.Interval(),
	)
	return nil
}

// AnnounceAll republishes metadata for every device, e.g. after the MQTT
// session was re-established.
func (g *Gateway) AnnounceAll() error {
	return g.poller.AnnounceAll()
}

// HandleReconnect is meant for the MQTT on-connect callback. The announce
// runs in the background so the callback returns promptly.
func (g *Gateway) HandleReconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started || g.stopped {
		return
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.AnnounceAll(); err != nil {
			g.logger.Warn("re-announce after reconnect incomplete", "error", err)
		}
	}()
}

// Stop cancels polling, waits for it to finish and marks every device
// disconnected. Safe to call multiple times.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.mu.Lock()
		cancel := g.cancel
		started := g.started
		g.stopped = true
		g.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		g.wg.Wait()

		if !started {
			return
		}
		for _, d := range g.registry.Devices() {
			if err := g.publisher.PublishDisconnected(d); err != nil {
				g.logger.Warn("failed to publish disconnected state", "device", d.Name, "error", err)
			}
		}
		g.logger.Info("gateway stopped")
	})
}

// Router returns the command router.
func (g *Gateway) Router() *Router {
	return g.router
}

// Poller returns the status poller.
func (g *Gateway) Poller() *Poller {
	return g.poller
}
