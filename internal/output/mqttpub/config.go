package mqttpub

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Topic layouts.
const (
	LayoutCombined  = "combined"
	LayoutPerRegion = "per_region"
)

// DefaultTopicPrefix is the topic namespace of the home-automation sensors.
const DefaultTopicPrefix = "missile_alerts"

// Config configures the downstream broker sink.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ClientID       string
	Layout         string
	StateTopic     string
	AttrTopic      string
	TopicPrefix    string
	QoS            byte
	Retained       bool
	ConnectTimeout time.Duration
}

// Broker returns the broker URL.
func (c Config) Broker() string {
	u := &url.URL{
		Scheme: "tcp",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}
	return u.String()
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.ClientID == "" {
		c.ClientID = "alertrelay"
	}
	if c.Layout == "" {
		c.Layout = LayoutCombined
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = DefaultTopicPrefix
	}
	c.TopicPrefix = strings.TrimRight(c.TopicPrefix, "/")
	if c.StateTopic == "" {
		c.StateTopic = c.TopicPrefix + "/state"
	}
	if c.AttrTopic == "" {
		c.AttrTopic = c.StateTopic + "_attr"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	return c
}

// Validate checks a config that already has defaults applied.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("mqtt output host is empty")
	}
	if c.Layout != LayoutCombined && c.Layout != LayoutPerRegion {
		return fmt.Errorf("unknown mqtt output layout %q", c.Layout)
	}
	if c.QoS > 2 {
		return fmt.Errorf("invalid mqtt output qos %d", c.QoS)
	}
	return nil
}
