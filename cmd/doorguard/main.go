// Doorguard Core - Real-Time Access Control Coordinator
//
// This is the main entry point for the Doorguard coordinator. It owns the
// in-memory device table, the rate limiter, the authorization engine, and
// the HTTP/WebSocket ingress surface that dashboards and door controllers
// connect to. MQTT and InfluxDB are optional telemetry sinks; the
// coordinator runs fully without either.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/doorguard/core/internal/api"
	"github.com/doorguard/core/internal/authz"
	"github.com/doorguard/core/internal/conn"
	"github.com/doorguard/core/internal/device"
	"github.com/doorguard/core/internal/infrastructure/config"
	"github.com/doorguard/core/internal/infrastructure/influxdb"
	"github.com/doorguard/core/internal/infrastructure/logging"
	"github.com/doorguard/core/internal/infrastructure/mqtt"
	"github.com/doorguard/core/internal/ratelimit"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting doorguard core", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	seeds := deviceSeeds(cfg.Devices)

	store, err := device.NewStore(seeds, cfg.AccessLogRetention, log)
	if err != nil {
		return fmt.Errorf("initialising device store: %w", err)
	}
	log.Info("device store initialised", "devices", len(seeds))

	limiter := ratelimit.New(ratelimit.Config{
		MaxAttemptsPerMinute: cfg.RateLimit.MaxAttemptsPerMinute,
		MaxFailedAttempts:    cfg.RateLimit.MaxFailedAttempts,
		LockoutDuration:      cfg.RateLimit.LockoutDuration(),
		CleanupInterval:      cfg.RateLimit.CleanupInterval(),
	})

	stopCleanup := make(chan struct{})
	go limiter.StartCleanupLoop(stopCleanup)
	defer close(stopCleanup)

	registry := conn.New(store, cfg.Heartbeat, log)
	store.SetEventSink(registry)

	// Connect to MQTT broker (optional telemetry republishing).
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))

		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		registry.SetTelemetryPublisher(mqttClient)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional operational metrics).
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		influxClient.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		registry.SetMetricsRecorder(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	engine := authz.New(store, limiter, registry, authz.Config{
		AdminUserID:              cfg.AdminUserID,
		AdminExemptFromRateLimit: cfg.RateLimit.AdminExemptFromRateLimit,
	}, log)

	server, err := api.New(api.Deps{
		Config:             cfg.API,
		WS:                 cfg.WebSocket,
		Logger:             log,
		Store:              store,
		Limiter:            limiter,
		Engine:             engine,
		Registry:           registry,
		MQTT:               mqttClient,
		AdminUserID:        cfg.AdminUserID,
		AccessLogRetention: cfg.AccessLogRetention,
		Version:            version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, server, mqttClient, influxClient); err != nil {
		log.Warn("startup health check reported a failing dependency", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("doorguard core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOORGUARD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORGUARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// deviceSeeds converts the configuration's device records into the device
// package's seed type. Config.Validate has already rejected unrecognised
// kinds by the time this runs.
func deviceSeeds(records []config.DeviceSeedConfig) []device.Seed {
	seeds := make([]device.Seed, 0, len(records))
	for _, r := range records {
		seeds = append(seeds, device.Seed{
			ID:                    r.ID,
			Location:              r.Location,
			Kind:                  device.Kind(r.Kind),
			InitialPhysicalStatus: device.PhysicalStatus(r.InitialPhysicalStatus),
			InitialLockState:      device.LockState(r.InitialLockState),
		})
	}
	return seeds
}

// healthCheck verifies the core dependencies the coordinator started are
// actually responsive. MQTT and InfluxDB are only checked when configured.
func healthCheck(ctx context.Context, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
