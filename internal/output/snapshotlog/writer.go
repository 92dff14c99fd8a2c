package snapshotlog

import (
	"context"
	"strconv"
	"strings"

	"alertrelay/internal/logger"
	"alertrelay/pkg/models"
)

// Writer logs a one-line summary of each snapshot instead of delivering it.
type Writer struct{}

// NewWriter returns a log sink.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteSnapshot logs the active and update counts per region.
func (w *Writer) WriteSnapshot(_ context.Context, snap models.Snapshot) error {
	logger.Infof("Snapshot active=%s %s", models.StateFlag(snap.Active()), Summary(snap))
	return nil
}

// Close is a no-op.
func (w *Writer) Close() error {
	return nil
}

// Summary renders "region:active/update" pairs in region order.
func Summary(snap models.Snapshot) string {
	ids := snap.RegionIDs()
	if len(ids) == 0 {
		return "(no regions)"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		st := snap.Regions[id]
		parts = append(parts, id+":"+strconv.Itoa(len(st.ActiveAlerts))+"/"+strconv.Itoa(len(st.UpdateAlerts)))
	}
	return strings.Join(parts, " ")
}
