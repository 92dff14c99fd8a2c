package aggregate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/pkg/models"
)

func TestSweeperExpiresOnTick(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(t0)
	s := NewStore(600*time.Second, []string{"A"})
	s.Apply(models.ClassActive, []models.AlertRecord{record("x1", "A", t0)})

	var swept atomic.Int64
	p := NewSweeper(s, 30*time.Second, mock)
	p.OnSweep(func(n int) { swept.Add(int64(n)) })
	p.Start(context.Background())
	defer p.Stop()

	// Give the loop a chance to create its ticker before moving time.
	require.Eventually(t, func() bool {
		mock.Add(30 * time.Second)
		return swept.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, s.Snapshot().Regions["A"].ActiveAlerts)
}

func TestSweeperStopsWithContext(t *testing.T) {
	s := NewStore(time.Minute, nil)
	p := NewSweeper(s, time.Hour, clock.New())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	p.Stop()
}

func TestSweeperStopWithoutStart(t *testing.T) {
	p := NewSweeper(NewStore(time.Minute, nil), 0, nil)
	p.Stop()
}
