package snapshotlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"alertrelay/pkg/models"
)

func TestSummary(t *testing.T) {
	assert.Equal(t, "(no regions)", Summary(models.Snapshot{}))

	snap := models.Snapshot{Regions: map[string]models.RegionState{
		"b": {UpdateAlerts: []models.AlertRecord{{ID: "u"}}},
		"a": {ActiveAlerts: []models.AlertRecord{{ID: "x"}, {ID: "y"}}},
	}}
	assert.Equal(t, "a:2/0 b:0/1", Summary(snap))
	assert.NoError(t, NewWriter().WriteSnapshot(context.Background(), snap))
}
