// Doorkeeper - Electric Door Controller
//
// This is the main entry point for the Doorkeeper application.
// Doorkeeper reconciles a smart lock's MQTT feed, a wall pushbutton and
// the door sensor into relay outputs and lock commands, so an electric
// door opener follows the lock instead of fighting it.
//
// For the wiring contract and topic layout, see internal/bridge and
// internal/infrastructure/mqtt.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openhold/doorkeeper/internal/api"
	"github.com/openhold/doorkeeper/internal/bridge"
	"github.com/openhold/doorkeeper/internal/door"
	"github.com/openhold/doorkeeper/internal/gateway"
	"github.com/openhold/doorkeeper/internal/gpio"
	"github.com/openhold/doorkeeper/internal/infrastructure/config"
	"github.com/openhold/doorkeeper/internal/infrastructure/database"
	"github.com/openhold/doorkeeper/internal/infrastructure/influxdb"
	"github.com/openhold/doorkeeper/internal/infrastructure/logging"
	"github.com/openhold/doorkeeper/internal/infrastructure/mqtt"
	"github.com/openhold/doorkeeper/internal/journal"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Doorkeeper",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "device", cfg.Device)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Initialise transition journal
	store, err := journal.NewSQLiteStore(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("initialising journal: %w", err)
	}
	log.Info("transition journal ready")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
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

	mqttClient.SetLogger(log)
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Open the relay board and pushbutton. A failure here means the
	// door cannot be driven, so it is fatal rather than degraded.
	board, err := gpio.Open(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("opening GPIO board: %w", err)
	}
	defer func() {
		log.Info("releasing GPIO lines")
		if closeErr := board.Close(); closeErr != nil {
			log.Error("error closing GPIO board", "error", closeErr)
		}
	}()
	log.Info("GPIO board ready", "enabled", cfg.GPIO.Enabled, "chip", cfg.GPIO.Chip)

	policy, err := door.PolicyFromName(cfg.Door.Pushbutton)
	if err != nil {
		return fmt.Errorf("selecting pushbutton policy: %w", err)
	}
	log.Info("pushbutton policy selected", "policy", policy.Name())

	// Assemble the bridge and the controller. The controller publishes
	// through the bridge and the bridge dispatches inbound messages to
	// the controller, so the bridge is built first and bound after.
	qos := byte(cfg.MQTT.QoS) // #nosec G115 -- validated to 0..2 by config
	opts := []bridge.Option{bridge.WithJournal(store)}
	if influxClient != nil {
		opts = append(opts, bridge.WithTelemetry(influxClient))
	}
	br := bridge.New(log, mqttClient, cfg.Device, qos, opts...)

	ctrl := door.New(log, board, br, policy, door.Timing{
		DoorOpenTime:      cfg.DoorOpenTime(),
		DoorCloseTime:     cfg.DoorCloseTime(),
		LockUnlatchTime:   cfg.LockUnlatchTime(),
		CheckInterval:     cfg.CheckInterval(),
		PulseTime:         cfg.PulseTime(),
		ActionEventMaxAge: cfg.ActionEventMaxAge(),
	})
	br.Attach(ctrl)

	if err := board.WatchButton(ctrl.OnPushbuttonPressed); err != nil {
		return fmt.Errorf("watching pushbutton: %w", err)
	}

	// Drive the relays to their safe startup positions and publish the
	// initial status before accepting any inbound traffic.
	ctrl.Activate()
	ctrl.Start(ctx)

	if err := br.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}

	// Start remote gateway listener (optional)
	if cfg.Gateway.Enabled {
		gw := gateway.New(log, cfg.Gateway, mqttClient, cfg.Device, qos, ctrl.Status)
		if startErr := gw.Start(ctx); startErr != nil {
			return fmt.Errorf("starting gateway: %w", startErr)
		}
		defer func() {
			log.Info("closing gateway")
			if closeErr := gw.Close(); closeErr != nil {
				log.Error("error closing gateway", "error", closeErr)
			}
		}()
		ctrl.AddWatcher(gw.Notify)
		log.Info("gateway listening", "address", cfg.Gateway.Listen)
	} else {
		log.Info("gateway disabled")
	}

	// Start HTTP status API (optional)
	if cfg.API.Enabled {
		apiServer, newErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			Status:    ctrl.Status,
			Journal:   store,
			Publisher: mqttClient,
			Device:    cfg.Device,
			QoS:       qos,
		})
		if newErr != nil {
			return fmt.Errorf("creating API server: %w", newErr)
		}
		if startErr := apiServer.Start(); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server (if enabled)
	// 2. Gateway (if enabled)
	// 3. GPIO board
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("Doorkeeper stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DOORKEEPER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORKEEPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
