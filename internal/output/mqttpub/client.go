package mqttpub

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"alertrelay/internal/logger"
)

// Client describes the publishing side of an MQTT connection, so tests can
// swap in a mock.
type Client interface {
	Connect() error
	Disconnect()
	Publish(topic string, qos byte, retained bool, message []byte) error
}

// NewClient produces a disconnected MQTT client.
var NewClient = func(c Config) Client {
	return &PahoClient{cfg: c}
}

// PahoClient publishes through Eclipse Paho with automatic reconnects.
type PahoClient struct {
	cfg    Config
	client pahomqtt.Client
}

var _ Client = &PahoClient{}

// DefaultQuiesceTimeout is the duration the client waits for outstanding
// messages before forcing a disconnection.
const DefaultQuiesceTimeout = 250 * time.Millisecond

// Connect starts the connection. If the broker is not reachable within the
// connect timeout the client keeps retrying in the background.
func (p *PahoClient) Connect() error {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker())
	opts.SetClientID(p.cfg.ClientID)
	opts.SetUsername(p.cfg.Username)
	opts.SetPassword(p.cfg.Password)
	// Publishing only; nothing to keep on the broker between sessions.
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(p.cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		logger.Infof("Connected to output broker %s", p.cfg.Broker())
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warnf("Output broker connection lost: %v", err)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		logger.Warnf("Output broker %s not reachable yet, retrying in background", p.cfg.Broker())
		return nil
	}
	return token.Error()
}

// Disconnect closes the connection.
func (p *PahoClient) Disconnect() {
	if p.client != nil {
		p.client.Disconnect(uint(DefaultQuiesceTimeout / time.Millisecond))
	}
}

// Publish sends one message and waits for the broker handshake of its QoS.
func (p *PahoClient) Publish(topic string, qos byte, retained bool, message []byte) error {
	if p.client == nil {
		return fmt.Errorf("publish before connect")
	}
	token := p.client.Publish(topic, qos, retained, message)
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}
