package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff"

	"alertrelay/internal/logger"
	"alertrelay/pkg/models"
)

// ErrConnectTimeout is returned when no CONNACK arrives within the connect timeout.
var ErrConnectTimeout = errors.New("mqtt connect timeout")

var errRotate = errors.New("host rotation due")

// TimestampPlaceholder is replaced with the attempt's unix time in the host template.
const TimestampPlaceholder = "{timestamp}"

// State is the session life-cycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStopping
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config configures the push session.
type Config struct {
	HostTemplate   string
	Port           int
	Credential     models.Credential
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	// RotateInterval forces a reconnect to a freshly templated host; 0 disables it.
	RotateInterval time.Duration
	TLS            *tls.Config
	MessageBuffer  int
}

// Session keeps one durable MQTT connection to the push backend alive and
// feeds inbound payloads to a handler.
type Session struct {
	cfg     Config
	dial    Dialer
	backoff backoff.BackOff
	clock   clock.Clock

	mu       sync.Mutex
	state    State
	onState  func(from, to State)
	attempts int
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the paho dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		s.dial = d
	}
}

// WithClock sets the time source.
func WithClock(clk clock.Clock) Option {
	return func(s *Session) {
		s.clock = clk
	}
}

// WithStateListener registers fn to observe state transitions.
func WithStateListener(fn func(from, to State)) Option {
	return func(s *Session) {
		s.onState = fn
	}
}

// NewSession creates a session. A nil backoff uses a constant 5s delay.
func NewSession(cfg Config, bo backoff.BackOff, opts ...Option) *Session {
	if cfg.Port <= 0 {
		cfg.Port = 443
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 300 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MessageBuffer <= 0 {
		cfg.MessageBuffer = 64
	}
	if bo == nil {
		bo = backoff.NewConstantBackOff(5 * time.Second)
	}
	s := &Session{
		cfg:     cfg,
		dial:    PahoDialer,
		backoff: bo,
		clock:   clock.New(),
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	fn := s.onState
	s.mu.Unlock()

	logger.Debugf("MQTT session %s -> %s", prev, next)
	if fn != nil {
		fn(prev, next)
	}
}

// Endpoint renders the broker URL for an attempt made at now.
func (s *Session) Endpoint(now time.Time) string {
	host := strings.ReplaceAll(s.cfg.HostTemplate, TimestampPlaceholder, strconv.FormatInt(now.Unix(), 10))
	scheme := "tcp"
	if s.cfg.TLS != nil {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, s.cfg.Port)
}

// Run connects and reconnects until ctx is cancelled, calling handle for
// every inbound payload from the Run goroutine. It returns nil on a clean
// stop.
func (s *Session) Run(ctx context.Context, handle func(payload []byte)) error {
	if s.cfg.Credential.Token == "" {
		return fmt.Errorf("mqtt session requires a device token")
	}
	if s.cfg.HostTemplate == "" {
		return fmt.Errorf("mqtt host template is empty")
	}
	defer s.setState(StateStopped)

	for {
		err := s.runOnce(ctx, handle)
		if ctx.Err() != nil {
			s.setState(StateStopping)
			return nil
		}
		s.setState(StateDisconnected)

		if errors.Is(err, errRotate) {
			logger.Infof("Rotating MQTT host after %s", s.cfg.RotateInterval)
			continue
		}

		delay := s.backoff.NextBackOff()
		if delay == backoff.Stop {
			s.backoff.Reset()
			delay = s.backoff.NextBackOff()
		}
		logger.Warnf("MQTT session ended: %v; reconnecting in %s", err, delay)
		if !s.wait(ctx, delay) {
			s.setState(StateStopping)
			return nil
		}
	}
}

// wait sleeps for d unless ctx is cancelled first.
func (s *Session) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := s.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Session) runOnce(ctx context.Context, handle func([]byte)) error {
	s.setState(StateConnecting)
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	broker := s.Endpoint(s.clock.Now())
	token := s.cfg.Credential.Token
	msgs := make(chan []byte, s.cfg.MessageBuffer)
	lost := make(chan error, 1)
	done := make(chan struct{})

	client := s.dial(DialOptions{
		Broker:         broker,
		ClientID:       token,
		Username:       token,
		Password:       s.cfg.Credential.Auth,
		KeepAlive:      s.cfg.KeepAlive,
		ConnectTimeout: s.cfg.ConnectTimeout,
		TLS:            s.cfg.TLS,
		OnMessage: func(payload []byte) {
			select {
			case msgs <- payload:
			case <-done:
			}
		},
		OnConnectionLost: func(err error) {
			select {
			case lost <- err:
			default:
			}
		},
	})

	// Messages paho routes while Disconnect quiesces are still handed to
	// handle; done is only closed once the client can no longer call back.
	teardown := func() {
		disconnected := make(chan struct{})
		go func() {
			client.Disconnect()
			close(disconnected)
		}()
		for {
			select {
			case payload := <-msgs:
				handle(payload)
			case <-disconnected:
				close(done)
				for {
					select {
					case payload := <-msgs:
						handle(payload)
					default:
						return
					}
				}
			}
		}
	}

	logger.Infof("Connecting to %s (attempt %d)", broker, attempt)
	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	err := client.Connect(connectCtx)
	cancel()
	if err != nil {
		teardown()
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = ErrConnectTimeout
		}
		return fmt.Errorf("connect %s: %w", broker, err)
	}

	subCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	err = client.Subscribe(subCtx, token, s.cfg.QoS)
	cancel()
	if err != nil {
		teardown()
		return fmt.Errorf("subscribe %s: %w", token, err)
	}

	s.setState(StateConnected)
	s.backoff.Reset()
	logger.Infof("Connected to %s, listening on %s (qos %d)", broker, token, s.cfg.QoS)

	var rotate <-chan time.Time
	if s.cfg.RotateInterval > 0 {
		t := s.clock.Timer(s.cfg.RotateInterval)
		defer t.Stop()
		rotate = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.setState(StateStopping)
			teardown()
			return ctx.Err()
		case payload := <-msgs:
			handle(payload)
		case err := <-lost:
			teardown()
			return fmt.Errorf("connection lost: %w", err)
		case <-rotate:
			teardown()
			return errRotate
		}
	}
}
