package snapshotjson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"alertrelay/internal/logger"
	"alertrelay/pkg/models"
)

// Writer appends snapshots to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter opens path for appending snapshots.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot file path is empty")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	logger.Infof("Snapshot JSON writer initialized: %s", path)
	return &Writer{
		file:    f,
		encoder: enc,
	}, nil
}

// WriteSnapshot writes one line per snapshot.
func (w *Writer) WriteSnapshot(_ context.Context, snap models.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("snapshot writer closed")
	}
	if err := w.encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
