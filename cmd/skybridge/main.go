// SkyBridge Core - DJI Drone Ground Control Dashboard Core
//
// This is the main entry point for the SkyBridge Core application.
// SkyBridge Core is the ground-station backend for DJI cloud-API
// gateways (docks and remote controllers), providing:
//   - Direct Remote Control (DRC) session workflow and link keep-alive
//   - MQTT service-call correlation against the DJI cloud API
//   - Per-device dashboard state isolation and restore
//   - Flight telemetry recording to InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/skybridge/skybridge-core/migrations"

	"github.com/skybridge/skybridge-core/internal/api"
	"github.com/skybridge/skybridge-core/internal/correlator"
	"github.com/skybridge/skybridge-core/internal/devicestate"
	"github.com/skybridge/skybridge-core/internal/drc"
	"github.com/skybridge/skybridge-core/internal/heartbeat"
	"github.com/skybridge/skybridge-core/internal/infrastructure/config"
	"github.com/skybridge/skybridge-core/internal/infrastructure/database"
	"github.com/skybridge/skybridge-core/internal/infrastructure/influxdb"
	"github.com/skybridge/skybridge-core/internal/infrastructure/logging"
	"github.com/skybridge/skybridge-core/internal/infrastructure/mqtt"
	"github.com/skybridge/skybridge-core/internal/telemetry"
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
	log.Info("starting SkyBridge Core",
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
	log.Info("configuration loaded", "path", configPath)

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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

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

	gatewaySN := cfg.Gateway.SerialNumber
	topics := mqtt.Topics{}

	// Protocol session state: broker handoff config, push frequencies,
	// prerequisite tracking.
	session := drc.NewSession()
	session.SetFrequencies(cfg.DRC.OSDFrequency, cfg.DRC.HSIFrequency)
	session.SetBrokerConfig(relayBroker(cfg))
	session.UpdateMQTTStatus(mqttClient.IsConnected())

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		session.UpdateMQTTStatus(true)
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		session.UpdateMQTTStatus(false)
	})

	// Request/reply correlation over the shared services_reply topic
	corr := correlator.New(mqttClient, log)
	defer corr.Close()
	if err := mqttClient.Subscribe(topics.ServicesReply(gatewaySN), byte(cfg.MQTT.QoS), corr.HandleReply); err != nil {
		return fmt.Errorf("subscribing to services_reply: %w", err)
	}

	// DRC link keep-alive
	keeper := heartbeat.New(mqttClient, gatewaySN, cfg.GetHeartbeatInterval(), log)
	if err := mqttClient.Subscribe(topics.DRCUp(gatewaySN), 0, keeper.HandleUplink); err != nil {
		return fmt.Errorf("subscribing to drc/up: %w", err)
	}

	// Workflow, authorization and the controller that orchestrates them
	workflow := drc.NewWorkflow(log)
	auth := drc.NewAuthManager(corr, cfg.GetServiceTimeout())
	auth.SetConfirmWindow(cfg.GetConfirmTimeout())

	sessionRepo := drc.NewSessionRepository(db)

	var telemetrySink drc.TelemetrySink
	if influxClient != nil {
		telemetrySink = influxClient
	}

	controller := drc.NewController(drc.ControllerConfig{
		GatewaySN:      gatewaySN,
		UserID:         cfg.Gateway.UserID,
		UserCallsign:   cfg.Gateway.UserCallsign,
		Session:        session,
		Workflow:       workflow,
		Auth:           auth,
		Caller:         corr,
		ServiceTimeout: cfg.GetServiceTimeout(),
		Heartbeat:      keeper,
		Telemetry:      telemetrySink,
		Recorder:       sessionRepo,
		Logger:         log,
	})

	// Per-device dashboard state, persisted in SQLite
	stateStore := devicestate.NewSQLiteStore(db)
	stateManager := devicestate.NewManager(stateStore, log)
	deviceCtx := devicestate.NewContext(stateStore, log)
	if err := deviceCtx.LoadCurrent(ctx); err != nil {
		return fmt.Errorf("loading current device: %w", err)
	}
	if deviceCtx.CurrentSN() == "" {
		if err := deviceCtx.SetCurrentDevice(ctx, gatewaySN); err != nil {
			return fmt.Errorf("selecting default device: %w", err)
		}
	}
	log.Info("device state initialised", "current_device", deviceCtx.CurrentSN())

	// A device switch abandons any in-flight DRC session
	deviceCtx.Subscribe(func(change devicestate.DeviceChange) {
		log.Info("device switched",
			"previous", change.PreviousSN,
			"current", change.CurrentSN,
		)
		controller.Reset()
	})

	// Telemetry recording (requires InfluxDB)
	if influxClient != nil {
		recorder := telemetry.NewRecorder(influxClient, log)
		if err := mqttClient.Subscribe(topics.AllOSD(), 0, recorder.HandleOSD); err != nil {
			return fmt.Errorf("subscribing to osd telemetry: %w", err)
		}
		if err := mqttClient.Subscribe(topics.AllState(), 0, recorder.HandleState); err != nil {
			return fmt.Errorf("subscribing to state telemetry: %w", err)
		}
		if err := mqttClient.Subscribe(topics.AllStatus(), 1, recorder.HandleStatus); err != nil {
			return fmt.Errorf("subscribing to gateway status: %w", err)
		}
		log.Info("telemetry recorder started")
	}

	// HTTP API server
	server := api.New(api.Config{
		ListenAddr:   fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Controller:   controller,
		Devices:      deviceCtx,
		State:        stateManager,
		Sessions:     sessionRepo,
		Heartbeat:    keeper,
		Logger:       log,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal or server failure
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error("error shutting down api server", "error", err)
	}

	// Deferred Close() calls will run in reverse order:
	// 1. Correlator
	// 2. MQTT
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("SkyBridge Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SKYBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SKYBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// relayBroker builds the DRC relay broker configuration handed to the
// aircraft on drc_mode_enter. When no explicit relay is configured the
// main MQTT broker is reused.
func relayBroker(cfg *config.Config) drc.BrokerConfig {
	relay := cfg.DRC.Relay
	if relay.Address == "" {
		scheme := "tcp"
		if cfg.MQTT.Broker.TLS {
			scheme = "ssl"
		}
		relay.Address = fmt.Sprintf("%s://%s:%d", scheme, cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)
		relay.Username = cfg.MQTT.Auth.Username
		relay.Password = cfg.MQTT.Auth.Password
		relay.EnableTLS = cfg.MQTT.Broker.TLS
	}
	if relay.ClientID == "" {
		relay.ClientID = cfg.Gateway.SerialNumber + "-drc"
	}
	return drc.BrokerConfig{
		Address:    relay.Address,
		ClientID:   relay.ClientID,
		Username:   relay.Username,
		Password:   relay.Password,
		EnableTLS:  relay.EnableTLS,
		ExpireTime: relay.ExpireTime,
	}
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
