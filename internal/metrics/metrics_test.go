package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.MessagesReceived.Inc()
	m.MessagesDropped.WithLabelValues("stale").Inc()
	m.MessagesDropped.WithLabelValues("stale").Inc()
	m.ObserveLatency(-time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReceived))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues("stale")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DeliveryLatency))
}

func TestSessionStateIsExclusive(t *testing.T) {
	m := New()
	all := []string{"disconnected", "connecting", "connected"}
	m.SetSessionState("connecting", all)
	m.SetSessionState("connected", all)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionState.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionState.WithLabelValues("connected")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Reconnects.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "alertrelay_session_reconnects_total 1")
}
