package mqttpub_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/internal/output/mqttpub"
	"alertrelay/internal/output/mqttpub/mqttpubtest"
	"alertrelay/pkg/models"
)

func useMock(t *testing.T) *mqttpubtest.ClientCreator {
	t.Helper()
	creator := &mqttpubtest.ClientCreator{}
	orig := mqttpub.NewClient
	mqttpub.NewClient = creator.NewClient
	t.Cleanup(func() { mqttpub.NewClient = orig })
	return creator
}

func sampleSnapshot() models.Snapshot {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.Snapshot{
		TakenAt: at,
		Regions: map[string]models.RegionState{
			"5001": {
				ActiveAlerts: []models.AlertRecord{{ID: "a1", Title: "ירי רקטות וטילים", RegionID: "5001", Data: "תל אביב", AlertTime: at}},
			},
			"1": {},
		},
	}
}

func TestBroker(t *testing.T) {
	cfg := mqttpub.Config{Host: "localhost", Port: 1883}
	assert.Equal(t, "tcp://localhost:1883", cfg.Broker())

	cfg = mqttpub.Config{Host: "::1", Port: 1884}
	assert.Equal(t, "tcp://[::1]:1884", cfg.Broker())
}

func TestDefaults(t *testing.T) {
	cfg := mqttpub.Config{Host: "h"}.WithDefaults()
	assert.Equal(t, 1883, cfg.Port)
	assert.Equal(t, mqttpub.LayoutCombined, cfg.Layout)
	assert.Equal(t, "missile_alerts/state", cfg.StateTopic)
	assert.Equal(t, "missile_alerts/state_attr", cfg.AttrTopic)
	require.NoError(t, cfg.Validate())

	bad := mqttpub.Config{Host: "h", Layout: "flat"}.WithDefaults()
	assert.Error(t, bad.Validate())
	assert.Error(t, mqttpub.Config{}.WithDefaults().Validate())
}

func TestCombinedPublishesAttrThenState(t *testing.T) {
	creator := useMock(t)
	w, err := mqttpub.NewWriter(mqttpub.Config{Host: "broker"})
	require.NoError(t, err)

	require.NoError(t, w.WriteSnapshot(context.Background(), sampleSnapshot()))

	require.Len(t, creator.Clients, 1)
	pubs := creator.Clients[0].Published()
	require.Len(t, pubs, 2)
	assert.Equal(t, "missile_alerts/state_attr", pubs[0].Topic)
	assert.Equal(t, "missile_alerts/state", pubs[1].Topic)
	assert.Equal(t, "1", string(pubs[1].Message))
	assert.Equal(t, byte(0), pubs[0].QoS)
	assert.False(t, pubs[0].Retained)

	var attr models.RegionState
	require.NoError(t, json.Unmarshal(pubs[0].Message, &attr))
	require.Len(t, attr.ActiveAlerts, 1)
	assert.Equal(t, "a1", attr.ActiveAlerts[0].ID)
	assert.NotNil(t, attr.UpdateAlerts)
	assert.Contains(t, string(pubs[0].Message), "תל אביב")

	require.NoError(t, w.Close())
	assert.False(t, creator.Clients[0].Connected())
}

func TestPerRegionLayout(t *testing.T) {
	msgs, err := mqttpub.Messages(mqttpub.Config{Layout: mqttpub.LayoutPerRegion, TopicPrefix: "alerts/"}, sampleSnapshot())
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, "alerts/1_attr", msgs[0].Topic)
	assert.Equal(t, "alerts/1", msgs[1].Topic)
	assert.Equal(t, "0", string(msgs[1].Payload))
	assert.JSONEq(t, `{"selected_areas_active_alerts":[],"selected_areas_updates":[]}`, string(msgs[0].Payload))

	assert.Equal(t, "alerts/5001_attr", msgs[2].Topic)
	assert.Equal(t, "alerts/5001", msgs[3].Topic)
	assert.Equal(t, "1", string(msgs[3].Payload))
}

func TestEmptySnapshotIsInactive(t *testing.T) {
	msgs, err := mqttpub.Messages(mqttpub.Config{}, models.Snapshot{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"selected_areas_active_alerts":[],"selected_areas_updates":[]}`, string(msgs[0].Payload))
	assert.Equal(t, "0", string(msgs[1].Payload))
}

func TestPublishErrorIsReturned(t *testing.T) {
	creator := useMock(t)
	w, err := mqttpub.NewWriter(mqttpub.Config{Host: "broker"})
	require.NoError(t, err)
	creator.Clients[0].FailWith = errors.New("boom")

	err = w.WriteSnapshot(context.Background(), sampleSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missile_alerts/state_attr")
}
