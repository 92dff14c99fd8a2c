package models

import (
	"fmt"
	"strings"
)

// AlertMessage is one decoded push payload.
type AlertMessage struct {
	ID         string `json:"id"`
	AlertTitle string `json:"alertTitle"`
	Title      string `json:"title"`
	Time       string `json:"time"`
	CitiesIDs  string `json:"citiesIds"`
	ThreatID   string `json:"threatId"`
	Desc       string `json:"desc"`

	Raw map[string]interface{} `json:"-"`
}

// DedupID returns the identifier used for duplicate suppression.
// alertTitle carries the backend's unique id; id is a fallback.
func (m *AlertMessage) DedupID() string {
	if m == nil {
		return ""
	}
	if v := strings.TrimSpace(m.AlertTitle); v != "" {
		return v
	}
	return strings.TrimSpace(m.ID)
}

// Regions splits citiesIds into trimmed, non-empty region ids.
func (m *AlertMessage) Regions() []string {
	if m == nil || m.CitiesIDs == "" {
		return nil
	}
	parts := strings.Split(m.CitiesIDs, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Field returns a raw payload field as a string.
func (m *AlertMessage) Field(name string) string {
	if m == nil || m.Raw == nil {
		return ""
	}
	v, ok := m.Raw[name]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
