package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
alertrelay:
  backend:
    api_host: https://pushy.example
    app_id: abc
    sdk_version: 10117
  transport:
    host_template: mqtt-{timestamp}.example.io
    port: 443
    connect_timeout: 10s
    rotate_interval: 0s
    reconnect:
      policy: exponential
      delay: 5s
      max_delay: 1m
  subscription:
    unsubscribe_all_on_bootstrap: false
  alerts:
    regions: ["5001", "5002"]
    region_names:
      "5001": Tel Aviv
    max_age: 45s
  storage:
    backend: sqlite
    sqlite:
      path: state/relay.db
  output:
    modes: [mqtt, log]
    mqtt:
      host: 127.0.0.1
      layout: per_region
  logging:
    enabled: true
    level: debug
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alertrelay.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	r := cfg.AlertRelay
	assert.Equal(t, "https://pushy.example", r.Backend.APIHost)
	assert.Equal(t, 10117, r.Backend.SDKVersion)
	assert.Equal(t, 10*time.Second, r.Transport.ConnectTimeout)
	assert.Equal(t, time.Minute, r.Transport.Reconnect.MaxDelay)
	require.NotNil(t, r.Subscription.UnsubscribeAllOnBootstrap)
	assert.False(t, *r.Subscription.UnsubscribeAllOnBootstrap)
	assert.Equal(t, []string{"5001", "5002"}, r.Alerts.Regions)
	assert.Equal(t, "Tel Aviv", r.Alerts.RegionNames["5001"])
	assert.Equal(t, "state/relay.db", r.Storage.SQLite.Path)
	assert.Equal(t, []string{"mqtt", "log"}, r.Output.Modes)
	assert.Equal(t, "per_region", r.Output.MQTT.Layout)
	assert.True(t, r.Logging.Enabled)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, os.IsNotExist(err))
}
