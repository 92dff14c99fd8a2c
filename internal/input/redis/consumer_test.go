package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumerRequiresKey(t *testing.T) {
	_, err := NewConsumer(Config{})
	assert.Error(t, err)
}

func TestRunDeliversPayloadsInOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	_, err := mr.Push("alerts", `{"id":"1"}`, `{"id":"2"}`)
	require.NoError(t, err)

	c, err := NewConsumer(Config{Addr: mr.Addr(), Key: "alerts", BlockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan string, 2)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(p []byte) { got <- string(p) })
	}()

	for _, want := range []string{`{"id":"1"}`, `{"id":"2"}`} {
		select {
		case p := <-got:
			assert.Equal(t, want, p)
		case <-time.After(2 * time.Second):
			t.Fatal("payload not delivered")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestPopTimeoutReturnsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewConsumer(Config{Addr: mr.Addr(), Key: "empty", BlockTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	p, err := c.Pop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}
