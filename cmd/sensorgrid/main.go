// Command sensorgrid runs the SensorGrid marketplace core: the device
// registry, the access subscription ledger, and the HTTP/WebSocket API
// in front of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/api"
	"github.com/sensorgrid/sensorgrid-core/internal/events"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/config"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/database"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/influxdb"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/logging"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/mqtt"
	"github.com/sensorgrid/sensorgrid-core/internal/ledger"
	"github.com/sensorgrid/sensorgrid-core/internal/registry"
	"github.com/sensorgrid/sensorgrid-core/internal/wallet"
	_ "github.com/sensorgrid/sensorgrid-core/migrations"
)

var version = "dev" // set via -ldflags at build time

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sensorgrid: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sensorgrid %s\n", version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("sensorgrid core starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", "path", db.Path())

	// Event fan-out: the durable log is the record, MQTT and the
	// websocket hub mirror it to live consumers.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to mqtt broker: %w", err)
		}
		mqttClient.SetLogger(logger)
		defer mqttClient.Close()
		logger.Info("mqtt connected", "host", cfg.MQTT.Broker.Host)
	}

	var metrics *influxdb.Client
	if cfg.InfluxDB.Enabled {
		metrics, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			// metrics are advisory, start without them
			logger.Warn("influxdb unavailable, metrics disabled", "error", err)
		} else {
			metrics.SetLogger(logger)
			defer metrics.Close()
			logger.Info("influxdb connected", "url", cfg.InfluxDB.URL)
		}
	}

	hub := api.NewHub(cfg.WebSocket, logger)
	go hub.Run(ctx)

	publisher := events.NewPublisher(mqttClient, hub)
	publisher.SetLogger(logger)

	deviceRepo := registry.NewSQLiteRepository(db)
	registrySvc := registry.NewService(deviceRepo, cfg.Marketplace.AllowZeroTerms)
	registrySvc.SetLogger(logger)
	registrySvc.SetPublisher(publisher)

	wallets := wallet.NewRepository(db)

	ledgerSvc := ledger.NewService(ledger.NewSQLiteRepository(db), deviceRepo, wallets, ledger.Policy{
		Overpayment:       cfg.Marketplace.OverpaymentPolicy,
		InactivePurchases: cfg.Marketplace.InactivePurchases,
	})
	ledgerSvc.SetLogger(logger)
	ledgerSvc.SetPublisher(publisher)

	if metrics != nil {
		registrySvc.SetMetrics(metrics)
		ledgerSvc.SetMetrics(metrics)
	}

	server := api.NewServer(api.Deps{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Registry: registrySvc,
		Ledger:   ledgerSvc,
		Wallets:  wallets,
		Events:   events.NewSQLiteRepository(db.DB),
		Hub:      hub,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errCh
}
