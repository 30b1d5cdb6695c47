// presence-scan sweeps the local network with ARP and publishes what it
// finds as discovery snapshots for Presence Core.
//
// It needs CAP_NET_RAW (or root) to open the raw socket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/infrastructure/logging"
	"github.com/nerrad567/presence-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/scan"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

type hostScanner interface {
	Scan(ctx context.Context) ([]scan.Host, error)
	Self() scan.Interface
}

type discoveryPublisher interface {
	PublishDiscovery(payload []byte) error
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := defaultConfigPath
	if path := os.Getenv("PRESENCE_CONFIG"); path != "" {
		configPath = path
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version).Component("scan")
	if os.Geteuid() != 0 {
		log.Warn("not running as root, ARP sweep needs CAP_NET_RAW")
	}

	scanner, err := scan.New(scan.Options{
		Interface: cfg.Scanner.Interface,
		Timeout:   time.Duration(cfg.Scanner.Timeout) * time.Second,
		MaxHosts:  cfg.Scanner.MaxHosts,
	})
	if err != nil {
		return fmt.Errorf("creating scanner: %w", err)
	}
	scanner.SetLogger(log)
	self := scanner.Self()
	log.Info("scanner ready",
		"interface", self.Name,
		"address", self.Addr.String(),
		"prefix", self.Prefix.String(),
	)

	// A distinct client id keeps the core's session and will intact.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID += "-scan"
	mqttCfg.Topics.Availability = ""

	mqttClient, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)

	interval := time.Duration(cfg.Scanner.Interval) * time.Second
	loop(ctx, scanner, mqttClient, cfg.Scanner.Location, interval, log)

	log.Info("scanner stopped")
	return nil
}

// loop sweeps immediately and then every interval until ctx is done.
func loop(ctx context.Context, s hostScanner, pub discoveryPublisher, location string, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := sweep(ctx, s, pub, location); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("sweep failed", "error", err)
		} else {
			log.Debug("sweep published")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sweep runs one scan and publishes the whole result.
func sweep(ctx context.Context, s hostScanner, pub discoveryPublisher, location string) error {
	hosts, err := s.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	payload, err := presence.EncodeDiscovery(scan.ToDiscovery(hosts, s.Self(), location))
	if err != nil {
		return err
	}
	if err := pub.PublishDiscovery(payload); err != nil {
		return fmt.Errorf("publishing %d hosts: %w", len(hosts), err)
	}
	return nil
}
