package mqttpubtest

import (
	"errors"
	"sync"

	"alertrelay/internal/output/mqttpub"
)

// ClientCreator provides a NewClient method for creating MockClients.
// All configs and clients created are recorded.
type ClientCreator struct {
	mu      sync.Mutex
	Clients []*MockClient
	Configs []mqttpub.Config
}

// NewClient records c and returns a fresh MockClient.
func (s *ClientCreator) NewClient(c mqttpub.Config) mqttpub.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	cli := new(MockClient)
	s.Clients = append(s.Clients, cli)
	s.Configs = append(s.Configs, c)
	return cli
}

// MockClient records published messages.
type MockClient struct {
	mu        sync.Mutex
	connected bool
	// FailWith makes every Publish return this error.
	FailWith error

	PublishData []PublishData
}

var _ mqttpub.Client = &MockClient{}

func (m *MockClient) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockClient) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errors.New("Publish() called before Connect()")
	}
	if m.FailWith != nil {
		return m.FailWith
	}
	m.PublishData = append(m.PublishData, PublishData{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Message:  message,
	})
	return nil
}

// Published returns a copy of the recorded messages.
func (m *MockClient) Published() []PublishData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishData(nil), m.PublishData...)
}

type PublishData struct {
	Topic    string
	QoS      byte
	Retained bool
	Message  []byte
}
