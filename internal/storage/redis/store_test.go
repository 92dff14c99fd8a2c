package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alertrelay/internal/storage"
	"alertrelay/pkg/models"
)

func TestStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	st, err := NewStore(Config{Addr: mr.Addr(), KeyPrefix: "test"})
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	var topics models.TopicSet
	require.ErrorIs(t, st.Load(ctx, storage.KeySubscriptions, &topics), storage.ErrNotFound)

	require.NoError(t, st.Save(ctx, storage.KeySubscriptions, models.NewTopicSet("5001", "5002")))
	raw, err := mr.Get("test:subscriptions")
	require.NoError(t, err)
	assert.JSONEq(t, `{"topics":["5001","5002"]}`, raw)

	require.NoError(t, st.Load(ctx, storage.KeySubscriptions, &topics))
	assert.Equal(t, []string{"5001", "5002"}, topics.Topics)

	require.NoError(t, storage.Reset(ctx, st))
	assert.False(t, mr.Exists("test:subscriptions"))
}

func TestNewStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewStore(Config{Addr: addr})
	assert.Error(t, err)
}
