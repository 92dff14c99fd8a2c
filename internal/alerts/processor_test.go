package alerts

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/pkg/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) (*Processor, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(base)
	p := NewProcessor(Config{
		Regions:     []string{"A", "B"},
		RegionNames: map[string]string{"A": "Alpha"},
		MaxAge:      45 * time.Second,
	}, nil, WithClock(mock))
	return p, mock
}

func payload(id, title string, at time.Time, cities string) []byte {
	return []byte(fmt.Sprintf(`{"alertTitle":%q,"title":%q,"time":%q,"citiesIds":%q,"threatId":"0","desc":"d"}`,
		id, title, at.Format(time.RFC3339), cities))
}

func TestActiveAlertForWatchedRegion(t *testing.T) {
	p, _ := newTestProcessor(t)

	res, reason := p.Handle(payload("x1", "ירי רקטות וטילים", base.Add(-10*time.Second), "A,C"))
	require.Equal(t, Accepted, reason)
	require.NotNil(t, res)
	assert.Equal(t, models.ClassActive, res.Class)
	assert.Equal(t, []string{"A"}, res.Regions)
	assert.Equal(t, 10*time.Second, res.Latency)

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "x1", rec.ID)
	assert.Equal(t, "A", rec.RegionID)
	assert.Equal(t, "Alpha", rec.Data)
	assert.Equal(t, "0", rec.Category)
	assert.Equal(t, "2025-06-01 11:59:50", rec.AlertDate)
	assert.True(t, base.Equal(rec.ReceivedAt))
}

func TestUpdateAlertUsesRegionIDAsName(t *testing.T) {
	p, _ := newTestProcessor(t)

	res, reason := p.Handle(payload("x2", "עדכון", base, "B"))
	require.Equal(t, Accepted, reason)
	assert.Equal(t, models.ClassUpdate, res.Class)
	assert.Equal(t, "B", res.Records[0].Data)
}

func TestDuplicateIsDropped(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, reason := p.Handle(payload("x1", "t", base, "A"))
	require.Equal(t, Accepted, reason)
	_, reason = p.Handle(payload("x1", "t", base, "A"))
	assert.Equal(t, DropDuplicate, reason)
}

func TestIDFallsBackToID(t *testing.T) {
	p, _ := newTestProcessor(t)

	msg := &models.AlertMessage{ID: " 77 ", Title: "t", Time: base.Format(time.RFC3339), CitiesIDs: "A"}
	res, reason := p.Process(msg, base)
	require.Equal(t, Accepted, reason)
	assert.Equal(t, "77", res.Records[0].ID)

	_, reason = p.Process(&models.AlertMessage{Title: "t"}, base)
	assert.Equal(t, DropNoID, reason)
}

func TestStaleAndUnknownTimeAreDropped(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, reason := p.Handle(payload("old", "t", base.Add(-46*time.Second), "A"))
	assert.Equal(t, DropStale, reason)

	_, reason = p.Handle([]byte(`{"alertTitle":"notime","title":"t","time":"garbage","citiesIds":"A"}`))
	assert.Equal(t, DropNoTime, reason)

	_, reason = p.Handle(payload("edge", "t", base.Add(-45*time.Second), "A"))
	assert.Equal(t, Accepted, reason)
}

func TestStaleIDStillRemembered(t *testing.T) {
	p, mock := newTestProcessor(t)

	_, reason := p.Handle(payload("late", "t", base.Add(-time.Minute), "A"))
	require.Equal(t, DropStale, reason)

	mock.Add(time.Second)
	_, reason = p.Handle(payload("late", "t", base, "A"))
	assert.Equal(t, DropDuplicate, reason)
}

func TestUnwatchedAndMalformed(t *testing.T) {
	p, _ := newTestProcessor(t)

	_, reason := p.Handle(payload("u", "t", base, "C, D"))
	assert.Equal(t, DropUnwatched, reason)

	_, reason = p.Handle([]byte(`not json`))
	assert.Equal(t, DropMalformed, reason)
}

func TestRepeatedRegionYieldsOneRecord(t *testing.T) {
	p, _ := newTestProcessor(t)

	res, reason := p.Handle(payload("r", "t", base, "A, A,B"))
	require.Equal(t, Accepted, reason)
	assert.Equal(t, []string{"A", "B"}, res.Regions)
	assert.Len(t, res.Records, 2)
}

func TestNaiveTimeUsesSourceZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	mock := clock.NewMock()
	mock.Set(base)
	p := NewProcessor(Config{Regions: []string{"A"}, Location: loc}, nil, WithClock(mock))

	local := base.Add(-5 * time.Second).In(loc).Format("2006-01-02 15:04:05")
	res, reason := p.Handle([]byte(fmt.Sprintf(`{"alertTitle":"n","title":"t","time":%q,"citiesIds":"A"}`, local)))
	require.Equal(t, Accepted, reason)
	assert.Equal(t, 5*time.Second, res.Latency)
	assert.Equal(t, local, res.Records[0].AlertDate)
}
