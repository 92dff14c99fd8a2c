package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"alertrelay/internal/logger"
)

// Client is the narrow view of an MQTT connection the session needs.
type Client interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, qos byte) error
	Disconnect()
}

// DialOptions describes one connection attempt.
type DialOptions struct {
	Broker           string
	ClientID         string
	Username         string
	Password         string
	KeepAlive        time.Duration
	ConnectTimeout   time.Duration
	TLS              *tls.Config
	OnMessage        func(payload []byte)
	OnConnectionLost func(err error)
}

// Dialer builds a disconnected client for one attempt.
type Dialer func(DialOptions) Client

// DefaultQuiesceTimeout is how long Disconnect waits for in-flight work.
const DefaultQuiesceTimeout = 250 * time.Millisecond

// PahoDialer builds clients backed by the Eclipse Paho library. Reconnects
// are owned by the Session, so paho's own retry logic is disabled.
func PahoDialer(o DialOptions) Client {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	// Durable session: the backend keeps topic membership and queued
	// pushes for this client id across reconnects.
	opts.SetCleanSession(false)
	opts.SetProtocolVersion(4)
	opts.SetKeepAlive(o.KeepAlive)
	opts.SetConnectTimeout(o.ConnectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(true)
	if o.TLS != nil {
		opts.SetTLSConfig(o.TLS)
	}
	onMessage := func(_ pahomqtt.Client, m pahomqtt.Message) {
		if o.OnMessage != nil {
			o.OnMessage(m.Payload())
		}
	}
	opts.SetDefaultPublishHandler(onMessage)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if o.OnConnectionLost != nil {
			o.OnConnectionLost(err)
		}
	})

	return &pahoClient{
		client:    pahomqtt.NewClient(opts),
		onMessage: onMessage,
	}
}

type pahoClient struct {
	client    pahomqtt.Client
	onMessage pahomqtt.MessageHandler

	mu         sync.Mutex
	connectTok pahomqtt.Token
}

var _ Client = &pahoClient{}

func (p *pahoClient) Connect(ctx context.Context) error {
	tok := p.client.Connect()
	p.mu.Lock()
	p.connectTok = tok
	p.mu.Unlock()
	if err := waitToken(ctx, tok); err != nil {
		if ctx.Err() != nil {
			return ErrConnectTimeout
		}
		return err
	}
	return nil
}

func (p *pahoClient) Subscribe(ctx context.Context, topic string, qos byte) error {
	tok := p.client.Subscribe(topic, qos, p.onMessage)
	if err := waitToken(ctx, tok); err != nil {
		return err
	}
	if st, ok := tok.(*pahomqtt.SubscribeToken); ok {
		if code, ok := st.Result()[topic]; ok && code == 0x80 {
			return fmt.Errorf("broker refused subscription to %s", topic)
		}
	}
	return nil
}

// Disconnect closes the connection. A connect still waiting for its CONNACK
// is not stopped by paho, so the client is disconnected again once that
// attempt finishes; otherwise a late CONNACK would leave a second live
// connection under the same client id.
func (p *pahoClient) Disconnect() {
	quiesce := uint(DefaultQuiesceTimeout / time.Millisecond)
	p.client.Disconnect(quiesce)

	p.mu.Lock()
	tok := p.connectTok
	p.mu.Unlock()
	if tok == nil {
		return
	}

	closeLate := func() {
		if p.client.IsConnectionOpen() {
			logger.Warnf("Closing MQTT connection that completed after teardown")
			p.client.Disconnect(quiesce)
		}
	}
	select {
	case <-tok.Done():
		closeLate()
	default:
		go func() {
			<-tok.Done()
			closeLate()
		}()
	}
}

// waitToken waits for a paho token or the context, whichever comes first.
func waitToken(ctx context.Context, tok pahomqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RouteClientLogs sends paho's internal logging to the relay logger.
// Debug output is only routed when debug is true.
func RouteClientLogs(debug bool) {
	pahomqtt.ERROR = logger.Printer{Level: logger.Error, Prefix: "[paho]"}
	pahomqtt.CRITICAL = logger.Printer{Level: logger.Error, Prefix: "[paho]"}
	pahomqtt.WARN = logger.Printer{Level: logger.Warn, Prefix: "[paho]"}
	if debug {
		pahomqtt.DEBUG = logger.Printer{Level: logger.Debug, Prefix: "[paho]"}
	}
}
