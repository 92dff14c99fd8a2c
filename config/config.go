package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	AlertRelay AlertRelayConfig `yaml:"alertrelay"`
}

// AlertRelayConfig is the project configuration.
type AlertRelayConfig struct {
	Backend      BackendConfig      `yaml:"backend"`
	Transport    TransportConfig    `yaml:"transport"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Alerts       AlertsConfig       `yaml:"alerts"`
	Aggregate    AggregateConfig    `yaml:"aggregate"`
	Storage      StorageConfig      `yaml:"storage"`
	Output       OutputConfig       `yaml:"output"`
	HTTP         HTTPServerConfig   `yaml:"http"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// BackendConfig controls the push backend HTTP API.
type BackendConfig struct {
	APIHost      string        `yaml:"api_host"`
	AppID        string        `yaml:"app_id"`
	SDKVersion   int           `yaml:"sdk_version"`
	Platform     string        `yaml:"platform"`
	DeviceSuffix string        `yaml:"device_suffix"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
}

// TransportConfig controls the inbound alert channel.
type TransportConfig struct {
	// Mode is "mqtt" (push backend) or "redis" (replay from a Redis list).
	Mode               string          `yaml:"mode"`
	HostTemplate       string          `yaml:"host_template"`
	Port               int             `yaml:"port"`
	QoS                int             `yaml:"qos"`
	KeepAlive          time.Duration   `yaml:"keepalive"`
	ConnectTimeout     time.Duration   `yaml:"connect_timeout"`
	RotateInterval     time.Duration   `yaml:"rotate_interval"`
	InsecureSkipVerify bool            `yaml:"insecure_skip_verify"`
	MessageBuffer      int             `yaml:"message_buffer"`
	Reconnect          ReconnectConfig `yaml:"reconnect"`
	Redis              RedisConfig     `yaml:"redis"`
}

// ReconnectConfig controls the delay between session attempts.
type ReconnectConfig struct {
	Policy   string        `yaml:"policy"` // constant or exponential
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// SubscriptionConfig controls backend topic reconciliation.
type SubscriptionConfig struct {
	UnsubscribeAllOnBootstrap *bool `yaml:"unsubscribe_all_on_bootstrap"`
}

// AlertsConfig controls alert filtering and classification.
type AlertsConfig struct {
	Regions        []string          `yaml:"regions"`
	RegionNames    map[string]string `yaml:"region_names"`
	MaxAge         time.Duration     `yaml:"max_age"`
	SourceTimezone string            `yaml:"source_timezone"`
	DedupSize      int               `yaml:"dedup_size"`
	ActiveTitles   []string          `yaml:"active_titles"`
	LogRaw         bool              `yaml:"log_raw"`
	Rules          RulesConfig       `yaml:"rules"`
}

// RulesConfig controls Sigma classification rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AggregateConfig controls the alert-state store.
type AggregateConfig struct {
	Expiry        time.Duration `yaml:"expiry"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string       `yaml:"backend"` // file, redis or sqlite
	Dir     string       `yaml:"dir"`
	Redis   RedisConfig  `yaml:"redis"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig controls Redis access.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	KeyPrefix    string        `yaml:"key_prefix"`
	Channel      string        `yaml:"channel"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// SQLiteConfig controls the SQLite database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig controls snapshot sinks.
type OutputConfig struct {
	Modes []string         `yaml:"modes"` // mqtt, http, file, redis, log
	MQTT  MQTTOutputConfig `yaml:"mqtt"`
	HTTP  HTTPOutputConfig `yaml:"http"`
	File  FileOutputConfig `yaml:"file"`
	Redis RedisConfig      `yaml:"redis"`
	// WriteTimeout bounds a single sink write.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MQTTOutputConfig controls the home-automation broker sink.
type MQTTOutputConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	Layout         string        `yaml:"layout"` // combined or per_region
	StateTopic     string        `yaml:"state_topic"`
	AttrTopic      string        `yaml:"attr_topic"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            int           `yaml:"qos"`
	Retained       bool          `yaml:"retained"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// HTTPOutputConfig controls HTTP snapshot delivery.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// FileOutputConfig controls JSONL snapshot output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPServerConfig controls the status server.
type HTTPServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	Console   bool   `yaml:"console"`
	Format    string `yaml:"format"`
	MQTTDebug bool   `yaml:"mqtt_debug"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
