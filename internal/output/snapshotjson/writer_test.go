package snapshotjson

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/pkg/models"
)

func TestWriterAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snapshots.jsonl")
	w, err := NewWriter(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.WriteSnapshot(ctx, models.Snapshot{Regions: map[string]models.RegionState{"1": {}}}))
	require.NoError(t, w.WriteSnapshot(ctx, models.Snapshot{Regions: map[string]models.RegionState{
		"1": {ActiveAlerts: []models.AlertRecord{{ID: "a"}}},
	}}))
	require.NoError(t, w.Close())
	require.Error(t, w.WriteSnapshot(ctx, models.Snapshot{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []models.Snapshot
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var s models.Snapshot
		require.NoError(t, json.Unmarshal(sc.Bytes(), &s))
		lines = append(lines, s)
	}
	require.Len(t, lines, 2)
	assert.False(t, lines[0].Active())
	assert.True(t, lines[1].Active())
}

func TestWriterReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	for i := 0; i < 2; i++ {
		w, err := NewWriter(path)
		require.NoError(t, err)
		require.NoError(t, w.WriteSnapshot(context.Background(), models.Snapshot{}))
		require.NoError(t, w.Close())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(data))
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}
