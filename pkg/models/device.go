package models

import (
	"sort"
	"strings"
)

// DeviceIdentity is the persistent pseudo device id presented to the backend.
type DeviceIdentity struct {
	AndroidID string `json:"androidId"`
}

// Credential is the token/auth pair issued on registration.
type Credential struct {
	Token string `json:"token"`
	Auth  string `json:"auth"`
}

// Valid reports whether both halves of the credential are present.
func (c Credential) Valid() bool {
	return c.Token != "" && c.Auth != ""
}

// TopicSet is a normalized set of backend subscription topics.
type TopicSet struct {
	Topics []string `json:"topics"`
}

// NewTopicSet trims, deduplicates and sorts topics.
func NewTopicSet(topics ...string) TopicSet {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return TopicSet{Topics: out}
}

// Contains reports whether topic is in the set.
func (s TopicSet) Contains(topic string) bool {
	for _, t := range s.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Minus returns the topics of s that are not in other, in sorted order.
func (s TopicSet) Minus(other TopicSet) []string {
	out := make([]string, 0)
	for _, t := range s.Topics {
		if !other.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// Equal reports set equality.
func (s TopicSet) Equal(other TopicSet) bool {
	return len(s.Minus(other)) == 0 && len(other.Minus(s)) == 0
}

// Len returns the number of topics.
func (s TopicSet) Len() int {
	return len(s.Topics)
}
