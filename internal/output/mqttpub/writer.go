package mqttpub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"alertrelay/internal/logger"
	"alertrelay/pkg/models"
)

// Message is one topic/payload pair.
type Message struct {
	Topic   string
	Payload []byte
}

// Writer publishes snapshots as sensor state and attribute topics.
type Writer struct {
	cfg    Config
	client Client
	mu     sync.Mutex
}

// NewWriter connects to the broker and returns a writer.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := NewClient(cfg)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect output broker: %w", err)
	}
	logger.Infof("MQTT output initialized: %s (layout=%s)", cfg.Broker(), cfg.Layout)
	return &Writer{cfg: cfg, client: client}, nil
}

// WriteSnapshot publishes the attribute payload before the state flag of
// each sensor so consumers never see a state without its details.
func (w *Writer) WriteSnapshot(ctx context.Context, snap models.Snapshot) error {
	msgs, err := Messages(w.cfg, snap)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.client.Publish(m.Topic, w.cfg.QoS, w.cfg.Retained, m.Payload); err != nil {
			return fmt.Errorf("publish %s: %w", m.Topic, err)
		}
	}
	return nil
}

// Close disconnects from the broker.
func (w *Writer) Close() error {
	w.client.Disconnect()
	return nil
}

// Messages renders a snapshot into the ordered publish list for the layout.
func Messages(cfg Config, snap models.Snapshot) ([]Message, error) {
	cfg = cfg.WithDefaults()
	if cfg.Layout == LayoutPerRegion {
		ids := snap.RegionIDs()
		out := make([]Message, 0, 2*len(ids))
		for _, id := range ids {
			st := snap.Regions[id]
			attr, err := encodeAttributes(st)
			if err != nil {
				return nil, err
			}
			topic := cfg.TopicPrefix + "/" + id
			out = append(out,
				Message{Topic: topic + "_attr", Payload: attr},
				Message{Topic: topic, Payload: []byte(models.StateFlag(st.Active()))},
			)
		}
		return out, nil
	}

	combined := snap.Combined()
	attr, err := encodeAttributes(combined)
	if err != nil {
		return nil, err
	}
	return []Message{
		{Topic: cfg.AttrTopic, Payload: attr},
		{Topic: cfg.StateTopic, Payload: []byte(models.StateFlag(combined.Active()))},
	}, nil
}

func encodeAttributes(st models.RegionState) ([]byte, error) {
	st = st.WithEmptyLists()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(st); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
