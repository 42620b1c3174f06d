package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for a publish to complete.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is milliseconds to wait for pending work on disconnect.
	defaultDisconnectQuiesce = 250

	// defaultKeepAlive is the interval between keepalive pings.
	defaultKeepAlive = 30 * time.Second

	// defaultMaxReconnectInterval caps the exponential backoff on reconnection.
	defaultMaxReconnectInterval = 2 * time.Minute
)

// buildClientOptions constructs paho client options from SensorGrid config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetAutoReconnect(true)
	maxReconnect := defaultMaxReconnectInterval
	if cfg.Reconnect.MaxDelay > 0 {
		maxReconnect = time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	}
	opts.SetMaxReconnectInterval(maxReconnect)
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Clean session false: the broker retains subscriptions across
	// reconnects for QoS 1+ message delivery.
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	return opts
}

// configureLWT sets up the Last Will and Testament message.
//
// The LWT is published by the broker if the connection drops without a
// graceful disconnect, letting dashboards distinguish crashes from
// clean shutdowns.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	topic := Topics{}.SystemStatus()
	payload := buildLWTPayload(clientID)
	opts.SetWill(topic, string(payload), 1, true)
}

// statusPayload is the wire format for system status messages.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Timestamp string `json:"timestamp"`
}

func buildOnlinePayload(clientID string) []byte {
	return marshalStatus("online", clientID)
}

func buildOfflinePayload(clientID string) []byte {
	return marshalStatus("offline", clientID)
}

func buildLWTPayload(clientID string) []byte {
	return marshalStatus("offline_unexpected", clientID)
}

func marshalStatus(status, clientID string) []byte {
	payload, err := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// statusPayload contains only strings, marshal cannot fail
		return []byte(`{"status":"` + status + `"}`)
	}
	return payload
}
