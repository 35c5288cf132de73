// Tuya Homie Gateway
//
// Polls a Tuya device-control REST API and mirrors every device onto MQTT
// following the Homie convention. Commands published to .../set topics are
// forwarded back to the API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/tuya-homie-gateway/internal/api"
	"github.com/nerrad567/tuya-homie-gateway/internal/audit"
	"github.com/nerrad567/tuya-homie-gateway/internal/backend"
	"github.com/nerrad567/tuya-homie-gateway/internal/device"
	"github.com/nerrad567/tuya-homie-gateway/internal/gateway"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/config"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/database"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/tuya-homie-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/tuya-homie-gateway/internal/metrics"
	"github.com/nerrad567/tuya-homie-gateway/internal/product"
	"github.com/nerrad567/tuya-homie-gateway/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting tuya homie gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"backend", cfg.Backend.BaseURL,
		"base_topic", cfg.Homie.BaseTopic,
	)

	metrics.Init()

	products, err := product.Load(cfg.Homie.ProductConfig)
	switch {
	case errors.Is(err, product.ErrConfigLoad):
		// Load already fell back to the single default node.
		log.Warn("product config unavailable, using default node only", "error", err)
	case err != nil:
		return fmt.Errorf("loading product config: %w", err)
	default:
		log.Info("product config loaded", "path", cfg.Homie.ProductConfig, "products", len(products.Products()))
	}

	client, err := backend.New(cfg.Backend)
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}
	client.SetTransport(metrics.InstrumentTransport(nil))
	client.SetLogger(log.Component("backend"))

	registry := device.NewRegistry(client)
	registry.SetLogger(log.Component("registry"))
	client.SetNameResolver(registry)

	if err := registry.Refresh(ctx); err != nil {
		return fmt.Errorf("loading device list: %w", err)
	}
	log.Info("device registry initialised", "devices", registry.Count())

	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Gateway.StatusTopic)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	opts := gateway.Options{
		MQTT:     mqttClient,
		Registry: registry,
		Backend:  client,
		Products: products,
		Publisher: gateway.PublisherOptions{
			BaseTopic: cfg.Homie.BaseTopic,
			Version:   cfg.Homie.Version,
		},
		PollInterval:   cfg.GetPollInterval(),
		CommandTimeout: cfg.GetCommandTimeout(),
		Logger:         log.Component("gateway"),
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts.Telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var auditRepo *audit.Repository
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		auditRepo = audit.NewRepository(db.DB)
		opts.Audit = auditRepo
		log.Info("command audit enabled", "path", cfg.Database.Path)
	}

	gw, err := gateway.New(opts)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected, re-announcing devices")
		gw.HandleReconnect()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}
	defer func() {
		log.Info("stopping gateway")
		gw.Stop()
	}()

	if cfg.API.Enabled {
		srv, apiErr := startAPI(ctx, cfg, log, registry, products, client, mqttClient, influxClient, auditRepo)
		if apiErr != nil {
			return apiErr
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"poll_interval", cfg.GetPollInterval().String(),
	)
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startAPI builds and starts the status API. Optional collaborators are
// passed as untyped nil when disabled so the server sees them as absent.
func startAPI(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	registry *device.Registry,
	products *product.Config,
	client *backend.Client,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	auditRepo *audit.Repository,
) (*api.Server, error) {
	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log.Component("api"),
		Registry: registry,
		Products: products,
		Metadata: client,
		MQTT:     mqttClient,
		Version:  version,
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}
	if auditRepo != nil {
		deps.Audit = auditRepo
	}

	srv, err := api.New(deps)
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return srv, nil
}

// getConfigPath returns TUYAGW_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("TUYAGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
