package models

import "time"

// Classification splits alerts into active threats and informational updates.
type Classification int

const (
	ClassUpdate Classification = iota
	ClassActive
)

func (c Classification) String() string {
	switch c {
	case ClassActive:
		return "active"
	case ClassUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// AlertRecord is the per-region projection of an accepted alert.
type AlertRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	RegionID    string    `json:"regionId"`
	Data        string    `json:"data"`
	Category    string    `json:"category"`
	Description string    `json:"desc,omitempty"`
	AlertDate   string    `json:"alertDate"`
	AlertTime   time.Time `json:"alertTime"`
	ReceivedAt  time.Time `json:"receivedAt"`
}
