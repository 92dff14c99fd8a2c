package pipeline

import (
	"context"

	"alertrelay/pkg/models"
)

// SnapshotWriter delivers state snapshots to a downstream sink.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, snap models.Snapshot) error
	Close() error
}

// NamedWriter labels a writer for logs and metrics.
type NamedWriter struct {
	Name   string
	Writer SnapshotWriter
}

// MessageSource produces raw alert payloads until its context ends.
type MessageSource interface {
	Run(ctx context.Context, handle func(payload []byte)) error
}
