// Presence Core aggregates LAN discovery snapshots into a presence summary.
//
// Discovery snapshots arrive on an MQTT topic, are joined with the
// per-device settings users enter on the web page, and the resulting
// summary is published back to MQTT whenever either side changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/presence-core/migrations"

	"github.com/nerrad567/presence-core/internal/api"
	"github.com/nerrad567/presence-core/internal/audit"
	"github.com/nerrad567/presence-core/internal/device"
	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/infrastructure/database"
	"github.com/nerrad567/presence-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/presence-core/internal/infrastructure/logging"
	"github.com/nerrad567/presence-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/presence-core/internal/presence"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
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

// run wires the components and blocks until ctx is cancelled or the web
// server stops. Deferred closes run in reverse order of opening.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Presence Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		reportConfigProblems(log, err)
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	registry, db, closeRegistry, err := openRegistry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRegistry()

	var history audit.Repository
	if db != nil {
		history = audit.NewSQLiteRepository(db.DB)
		log.Info("settings history enabled")
	}

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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	coord := presence.NewCoordinator()
	wait := cfg.MQTT.ReceiveTimeout()

	ingest := presence.NewIngestLoop(coord, mqttClient, wait)
	ingest.SetLogger(log.Component("ingest"))

	publish := presence.NewPublishLoop(coord, registry, mqttClient, wait)
	publish.SetLogger(log.Component("publish"))
	if influxClient != nil {
		publish.AddObserver(presence.ObserverFunc(func(s presence.Summary) {
			influxClient.WritePresence(s.PeopleCount, s.DeviceCount, s.UnknownDevicesCount)
		}))
	}

	server, err := api.New(api.Deps{
		Config:      cfg.Web,
		SiteName:    cfg.Site.Name,
		Logger:      log.Component("api"),
		Coordinator: coord,
		Registry:    registry,
		History:     history,
		Bus:         mqttClient,
		Ingest:      ingest,
		Publish:     publish,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating web server: %w", err)
	}
	publish.AddObserver(server.Hub())

	var loops sync.WaitGroup
	startLoop(ctx, &loops, log, "ingest", ingest.Run)
	startLoop(ctx, &loops, log, "publish", publish.Run)

	if err := server.Start(ctx); err != nil {
		coord.Shutdown()
		loops.Wait()
		return fmt.Errorf("starting web server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing web server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete",
		"web", server.Addr(),
		"discovery_topic", cfg.MQTT.Topics.Discovery,
		"status_topic", cfg.MQTT.Topics.Status,
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case <-server.Done():
		log.Warn("web server stopped, shutting down")
	}

	coord.Shutdown()
	waitLoops(&loops, 2*wait+cfg.MQTT.PublishTimeout(), log)

	log.Info("Presence Core stopped")
	return nil
}

// getConfigPath returns PRESENCE_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// reportConfigProblems logs each validation problem on its own line.
func reportConfigProblems(log *logging.Logger, err error) {
	var vErr *config.ValidationError
	if !errors.As(err, &vErr) {
		return
	}
	for _, p := range vErr.Problems {
		log.Error("invalid configuration", "problem", p)
	}
}

// openRegistry builds the registry over the configured backend and loads
// it. db is nil for the json backend. The returned close func releases
// the backend.
func openRegistry(ctx context.Context, cfg *config.Config, log *logging.Logger) (*device.Registry, *database.DB, func(), error) {
	var (
		repo    device.Repository
		db      *database.DB
		closeFn = func() {}
	)

	switch cfg.Registry.Backend {
	case config.RegistryBackendSQLite:
		var err error
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", cfg.Database.Path)
		repo = device.NewSQLiteRepository(db.DB)
		closeFn = func() {
			log.Info("closing database")
			if err := db.Close(); err != nil {
				log.Error("error closing database", "error", err)
			}
		}
	default:
		repo = device.NewFileRepository(cfg.Registry.Path)
	}

	registry := device.NewRegistry(repo)
	registry.SetLogger(log.Component("registry"))
	if err := registry.Load(ctx); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("loading device registry: %w", err)
	}
	log.Info("registry backend ready",
		"backend", cfg.Registry.Backend,
		"devices", registry.Count(),
	)
	return registry, db, closeFn, nil
}

func startLoop(ctx context.Context, wg *sync.WaitGroup, log *logging.Logger, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fn(ctx); err != nil {
			log.Error("loop exited with error", "loop", name, "error", err)
		}
	}()
}

// waitLoops waits for the loops to observe shutdown, giving up after limit.
func waitLoops(wg *sync.WaitGroup, limit time.Duration, log *logging.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("loops stopped")
	case <-time.After(limit):
		log.Warn("loops did not stop in time", "limit", limit.String())
	}
}
