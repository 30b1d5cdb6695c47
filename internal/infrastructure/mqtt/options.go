package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/presence-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// Used when the config leaves publish_timeout_ms at zero.
	defaultPublishTimeout = 2 * time.Second

	defaultDisconnectQuiesce = 1000 // milliseconds

	defaultKeepAlive = 5 * time.Second

	// Broker packets above this size are refused by default.
	defaultMaxPayloadSize = 1000 * 1024

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

const (
	statusOnline   = "online"
	statusOffline  = "offline"
	reasonGraceful = "graceful_shutdown"
	reasonLWT      = "unexpected_disconnect"
)

func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions maps config.MQTTConfig onto paho options. Sessions
// are clean: the discovery topic carries full snapshots, so nothing
// queued while offline is worth replaying.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT registers a retained offline will on the availability
// topic. Without an availability topic no will is set.
func configureLWT(opts *pahomqtt.ClientOptions, cfg config.MQTTConfig) {
	if cfg.Topics.Availability == "" {
		return
	}
	payload := buildAvailabilityPayload(cfg.Broker.ClientID, statusOffline, reasonLWT)
	opts.SetWill(cfg.Topics.Availability, payload, 1, true)
}

type availabilityPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildAvailabilityPayload(clientID, status, reason string) string {
	data, _ := json.Marshal(availabilityPayload{ //nolint:errcheck // plain strings always marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(data)
}

func (c *Client) publishTimeout() time.Duration {
	if d := c.cfg.PublishTimeout(); d > 0 {
		return d
	}
	return defaultPublishTimeout
}

func (c *Client) maxPayloadSize() int {
	if c.cfg.MaxPayloadSize > 0 {
		return c.cfg.MaxPayloadSize
	}
	return defaultMaxPayloadSize
}
