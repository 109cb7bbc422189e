// hard - home automation relay daemon
//
// hard polls 1-wire sensor boards, drives relay boards and Wi-Fi lamps from
// their transitions, and publishes metrics to SQLite, InfluxDB, MQTT and a
// websocket stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/hard/internal/api"
	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/bridge"
	"github.com/nerrad567/hard/internal/device"
	"github.com/nerrad567/hard/internal/infrastructure/config"
	"github.com/nerrad567/hard/internal/infrastructure/database"
	"github.com/nerrad567/hard/internal/infrastructure/influxdb"
	"github.com/nerrad567/hard/internal/infrastructure/logging"
	"github.com/nerrad567/hard/internal/infrastructure/mqtt"
	"github.com/nerrad567/hard/internal/onewire"
	"github.com/nerrad567/hard/internal/process"
	"github.com/nerrad567/hard/internal/stats"
	"github.com/nerrad567/hard/internal/yeelight"
	"github.com/nerrad567/hard/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/hard.yaml"
	metricsQueueSize  = 1024
)

func main() {
	configFlag := flag.String("config", "", "path to the YAML configuration file")
	issueFlag := flag.String("issue-token", "", "print an API service token for this subject and exit")
	ttlFlag := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	// A .env file is optional; it only seeds HARD_* overrides.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	if *issueFlag != "" {
		token, err := issueToken(getConfigPath(*configFlag), *issueFlag, *ttlFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, getConfigPath(*configFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled or the control
// loop fails, then tears everything down in reverse order.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting hard",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing useful to do on failure
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
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
	log.Info("database ready", "path", db.Path())

	components := map[string]api.HealthChecker{"database": db}

	// InfluxDB (optional)
	var points stats.PointWriter
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		points = influxClient
		components["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, log.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		components["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Background jobs run on their own context so shutdown lets in-flight
	// lamp and shell commands finish within their timeouts.
	pool := process.NewPool(context.Background(), cfg.OneWire.Workers, log.With("component", "pool"))
	defer func() {
		log.Info("waiting for background jobs", "running", pool.Stats().Running)
		pool.Wait()
		pool.Close()
	}()

	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))

	recorder := stats.NewRecorder(stats.Deps{
		Repository: stats.NewSQLiteRepository(db.DB),
		Points:     points,
		Hub:        hub,
	}, metricsQueueSize, log.With("component", "stats"))

	out := automation.Collaborators{
		Metrics: recorder,
		Shell:   process.NewShell(pool, cfg.OneWire.ShellTimeout, log.With("component", "shell")),
	}
	var bridgeCfg bridge.Config
	if mqttClient != nil {
		bridgeCfg = bridge.Config{Topics: mqttClient.Topics(), QoS: mqttClient.QoS()}
		out.Display = bridge.NewDisplay(mqttClient, pool, bridgeCfg, log.With("component", "lcd"))
		out.Alarm = bridge.NewAlarmPanel(mqttClient, pool, bridgeCfg, log.With("component", "alarm"))
	}

	lights := yeelight.NewController(
		yeelight.NewClient(yeelight.Config{
			Port:     cfg.OneWire.YeelightPort,
			Timeout:  cfg.OneWire.YeelightTimeout,
			Attempts: cfg.OneWire.YeelightAttempts,
		}, log.With("component", "yeelight")),
		pool,
		log.With("component", "yeelight"),
	)

	// Devices and automation
	devs, err := device.Build(cfg.OneWire)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	registry := device.NewRegistry(devs)
	log.Info("device registry initialised",
		"sensor_boards", len(devs.SensorBoards),
		"relay_boards", len(devs.RelayBoards),
		"yeelights", len(devs.Yeelights),
	)

	pending := &automation.PendingTags{}
	tagTable := automation.NewTagTable(cfg.RFID.Tags)
	machine := automation.NewStateMachine(out, tagTable, pending, log.With("component", "automation"))
	tasks := automation.NewTaskQueue(cfg.OneWire.TaskQueueSize)

	worker := onewire.NewWorker(onewire.Deps{
		Registry: registry,
		Bus:      device.SysfsBus{Root: cfg.OneWire.RootPath},
		Machine:  machine,
		Tasks:    tasks,
		Metrics:  recorder,
		Lights:   lights,
	}, onewire.Config{
		Location:     cfg.Site.Location,
		ReadDelay:    cfg.OneWire.ReadDelay,
		PassInterval: cfg.OneWire.PassInterval,
	}, log.With("component", "onewire"))

	if mqttClient != nil {
		if subErr := bridge.NewTaskSubscriber(tasks, bridgeCfg, log.With("component", "tasks")).Subscribe(mqttClient); subErr != nil {
			return fmt.Errorf("subscribing to tasks: %w", subErr)
		}
		if subErr := bridge.NewRFIDSubscriber(pending, bridgeCfg, log.With("component", "rfid")).Subscribe(mqttClient); subErr != nil {
			return fmt.Errorf("subscribing to RFID: %w", subErr)
		}
		if subErr := bridge.NewTagTableSubscriber(tagTable, bridgeCfg, log.With("component", "rfid")).Subscribe(mqttClient); subErr != nil {
			return fmt.Errorf("subscribing to RFID tag table: %w", subErr)
		}
	}

	// The recorder outlives the loop so intents from the final pass are
	// persisted before the database closes.
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	recDone := make(chan error, 1)
	go func() { recDone <- recorder.Run(recCtx) }()
	defer func() {
		stopRecorder()
		if recErr := <-recDone; recErr != nil {
			log.Error("metrics recorder stopped with error", "error", recErr)
		}
		log.Info("metrics recorder stopped", "processed", recorder.Processed(), "dropped", recorder.Dropped())
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	// HTTP API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.With("component", "api"),
			Registry:   registry,
			Tasks:      tasks,
			Counters:   recorder,
			Loop:       worker,
			Pool:       pool,
			Hub:        hub,
			Components: components,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr = srv.Start(gctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, components); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g.Go(func() error {
		return worker.Run(gctx)
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	err = g.Wait()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, recorder, pool, MQTT,
	// InfluxDB, database.
	if err != nil {
		return fmt.Errorf("control loop: %w", err)
	}
	log.Info("hard stopped")
	return nil
}

// issueToken signs a service token with the configured api.auth.secret.
func issueToken(configPath, subject string, ttl time.Duration) (string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	token, err := api.IssueServiceToken(cfg.API.Auth.Secret, subject, ttl)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// getConfigPath picks the -config flag, then HARD_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("HARD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every infrastructure connection once at startup.
func healthCheck(ctx context.Context, components map[string]api.HealthChecker) error {
	for name, c := range components {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
