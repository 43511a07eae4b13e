// Package hass publishes normalized tank telemetry to Home Assistant over
// MQTT, using HA's discovery convention so tanks appear as sensors without
// manual configuration.
package hass

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
}

// Conn is the publish surface the publisher needs; satisfied by mqttConn and
// by test fakes.
type Conn interface {
	Publish(topic string, retained bool, payload []byte) error
}

type mqttConn struct {
	client mqtt.Client
}

// Dial connects to the broker with auto-reconnect enabled.
func Dial(cfg MQTTConfig) (Conn, error) {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(randomClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &mqttConn{client: client}, nil
}

func (c *mqttConn) Publish(topic string, retained bool, payload []byte) error {
	if token := c.client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func randomClientID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "mobilelink-" + base64.RawURLEncoding.EncodeToString(b)
}
