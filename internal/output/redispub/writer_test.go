package redispub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/pkg/models"
)

func TestWriteSnapshotSetsAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	w, err := NewWriter(Config{Addr: mr.Addr(), Key: "snap", Channel: "snaps"})
	require.NoError(t, err)
	defer w.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ps := sub.Subscribe(ctx, "snaps")
	defer ps.Close()
	_, err = ps.Receive(ctx)
	require.NoError(t, err)

	snap := models.Snapshot{Regions: map[string]models.RegionState{
		"5001": {ActiveAlerts: []models.AlertRecord{{ID: "a1", RegionID: "5001"}}},
	}}
	require.NoError(t, w.WriteSnapshot(ctx, snap))

	raw, err := mr.Get("snap")
	require.NoError(t, err)
	var stored models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.True(t, stored.Active())

	msg, err := ps.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, raw, msg.Payload)
}

func TestDefaultsWhenUnset(t *testing.T) {
	mr := miniredis.RunT(t)
	w, err := NewWriter(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteSnapshot(context.Background(), models.Snapshot{}))
	assert.True(t, mr.Exists("alertrelay:snapshot"))
}

func TestNewWriterUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewWriter(Config{Addr: addr})
	assert.Error(t, err)
}
