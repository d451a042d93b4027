package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("transport: not connected to MQTT broker")

// MQTTConfig holds the configuration for the MQTT transport.
type MQTTConfig struct {
	Broker         string // e.g. tcp://localhost:1883
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	Retain         bool // true to retain the latest result at the broker
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// mqttClient is the part of mqtt.Client the transport uses.
type mqttClient interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTTransport publishes each message as JSON to a broker topic.
type MQTTTransport struct {
	config MQTTConfig
	client mqttClient
	mu     sync.Mutex
	closed bool
}

// NewMQTTTransport connects to the broker and returns a transport
// publishing to config.Topic. The paho client reconnects automatically
// after the initial connection.
func NewMQTTTransport(config MQTTConfig) (*MQTTTransport, error) {
	if config.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Infof("connected to MQTT broker %s", config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("connection to MQTT broker %s lost: %v", config.Broker, err)
	})

	return newMQTTTransport(config, mqtt.NewClient(opts))
}

func newMQTTTransport(config MQTTConfig, client mqttClient) (*MQTTTransport, error) {
	if config.Topic == "" {
		return nil, errors.New("mqtt: topic is required")
	}
	if config.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid QoS %d", config.QoS)
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 10 * time.Second
	}

	token := client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connection to %s timed out", config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connection error: %w", err)
	}

	return &MQTTTransport{config: config, client: client}, nil
}

// Send publishes data as JSON to the configured topic.
func (t *MQTTTransport) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("mqtt: marshal: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if !t.client.IsConnected() {
		return ErrNotConnected
	}

	token := t.client.Publish(t.config.Topic, t.config.QoS, t.config.Retain, payload)
	if !token.WaitTimeout(t.config.PublishTimeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", t.config.Topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.client.Disconnect(250)
	return nil
}

var _ Transport = (*MQTTTransport)(nil)
