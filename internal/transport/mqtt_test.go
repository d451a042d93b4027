// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken completes immediately unless hang is set.
type fakeToken struct {
	err  error
	hang bool
}

func (t *fakeToken) Wait() bool                     { return !t.hang }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.hang }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.hang {
		close(ch)
	}
	return ch
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTTClient struct {
	mu           sync.Mutex
	connectToken *fakeToken
	publishToken *fakeToken
	connected    bool
	published    []publishCall
	disconnects  int
}

func (c *fakeMQTTClient) Connect() mqtt.Token {
	if c.connectToken != nil {
		return c.connectToken
	}
	c.connected = true
	return &fakeToken{}
}

func (c *fakeMQTTClient) IsConnected() bool { return c.connected }

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishCall{topic, qos, retained, payload.([]byte)})
	if c.publishToken != nil {
		return c.publishToken
	}
	return &fakeToken{}
}

func (c *fakeMQTTClient) Disconnect(uint) {
	c.connected = false
	c.disconnects++
}

func testMQTTConfig() MQTTConfig {
	return MQTTConfig{Broker: "tcp://localhost:1883", Topic: "tuner/pitch", QoS: 1, Retain: true}
}

func TestMQTTPublishesJSON(t *testing.T) {
	client := &fakeMQTTClient{}
	mt, err := newMQTTTransport(testMQTTConfig(), client)
	require.NoError(t, err)

	require.NoError(t, mt.Send(map[string]int{"fundamental_hz": 441}))
	require.Len(t, client.published, 1)

	call := client.published[0]
	assert.Equal(t, "tuner/pitch", call.topic)
	assert.Equal(t, byte(1), call.qos)
	assert.True(t, call.retained)

	var got map[string]int
	require.NoError(t, json.Unmarshal(call.payload, &got))
	assert.Equal(t, 441, got["fundamental_hz"])

	require.NoError(t, mt.Close())
	require.NoError(t, mt.Close())
	assert.Equal(t, 1, client.disconnects)
	assert.ErrorIs(t, mt.Send(1), ErrClosed)
}

func TestMQTTConnectFailures(t *testing.T) {
	refused := errors.New("connection refused")

	tests := []struct {
		name   string
		config MQTTConfig
		token  *fakeToken
	}{
		{"Missing topic", MQTTConfig{Broker: "tcp://localhost:1883"}, nil},
		{"Invalid QoS", MQTTConfig{Broker: "tcp://localhost:1883", Topic: "t", QoS: 3}, nil},
		{"Connect timeout", testMQTTConfig(), &fakeToken{hang: true}},
		{"Connect error", testMQTTConfig(), &fakeToken{err: refused}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newMQTTTransport(tt.config, &fakeMQTTClient{connectToken: tt.token})
			assert.Error(t, err)
		})
	}

	_, err := NewMQTTTransport(MQTTConfig{})
	assert.Error(t, err, "broker is required")
}

func TestMQTTPublishFailures(t *testing.T) {
	client := &fakeMQTTClient{}
	mt, err := newMQTTTransport(testMQTTConfig(), client)
	require.NoError(t, err)
	defer mt.Close()

	client.publishToken = &fakeToken{hang: true}
	assert.Error(t, mt.Send(1))

	failed := errors.New("broker rejected")
	client.publishToken = &fakeToken{err: failed}
	assert.ErrorIs(t, mt.Send(1), failed)

	client.connected = false
	assert.ErrorIs(t, mt.Send(1), ErrNotConnected)

	assert.Error(t, mt.Send(func() {}), "unmarshalable payload")
}
