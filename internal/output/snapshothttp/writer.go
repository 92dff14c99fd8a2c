package snapshothttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertrelay/pkg/models"
)

// Writer posts snapshots to a remote HTTP endpoint.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// Config configures the HTTP writer.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// NewWriter creates an HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http snapshot URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// WriteSnapshot posts one snapshot as JSON.
func (w *Writer) WriteSnapshot(ctx context.Context, snap models.Snapshot) error {
	body, err := json.Marshal(payload(snap))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}

	return nil
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// Payload is the body posted for every snapshot.
type Payload struct {
	TakenAt time.Time                     `json:"taken_at"`
	Active  bool                          `json:"active"`
	Alerts  models.RegionState            `json:"alerts"`
	Regions map[string]models.RegionState `json:"regions"`
}

func payload(snap models.Snapshot) Payload {
	snap = snap.Normalized()
	return Payload{
		TakenAt: snap.TakenAt,
		Active:  snap.Active(),
		Alerts:  snap.Combined(),
		Regions: snap.Regions,
	}
}
