package models

import (
	"sort"
	"time"
)

// RegionState holds the live alerts of one region. The JSON shape is the
// attribute payload consumed by the home-automation sensors.
type RegionState struct {
	ActiveAlerts []AlertRecord `json:"selected_areas_active_alerts"`
	UpdateAlerts []AlertRecord `json:"selected_areas_updates"`
}

// Active reports whether the region has at least one active alert.
func (r RegionState) Active() bool {
	return len(r.ActiveAlerts) > 0
}

// WithEmptyLists returns r with nil lists replaced by empty ones, so both
// encode as [] rather than null.
func (r RegionState) WithEmptyLists() RegionState {
	if r.ActiveAlerts == nil {
		r.ActiveAlerts = []AlertRecord{}
	}
	if r.UpdateAlerts == nil {
		r.UpdateAlerts = []AlertRecord{}
	}
	return r
}

// Snapshot is a point-in-time copy of every tracked region.
type Snapshot struct {
	TakenAt time.Time              `json:"taken_at"`
	Regions map[string]RegionState `json:"regions"`
}

// RegionIDs returns the region ids in lexical order.
func (s Snapshot) RegionIDs() []string {
	ids := make([]string, 0, len(s.Regions))
	for id := range s.Regions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Combined merges all regions into a single state, ordered by region id.
func (s Snapshot) Combined() RegionState {
	out := RegionState{
		ActiveAlerts: []AlertRecord{},
		UpdateAlerts: []AlertRecord{},
	}
	for _, id := range s.RegionIDs() {
		st := s.Regions[id]
		out.ActiveAlerts = append(out.ActiveAlerts, st.ActiveAlerts...)
		out.UpdateAlerts = append(out.UpdateAlerts, st.UpdateAlerts...)
	}
	return out
}

// Normalized returns a copy with a non-nil region map whose states all
// carry empty rather than nil lists.
func (s Snapshot) Normalized() Snapshot {
	out := Snapshot{TakenAt: s.TakenAt, Regions: make(map[string]RegionState, len(s.Regions))}
	for id, st := range s.Regions {
		out.Regions[id] = st.WithEmptyLists()
	}
	return out
}

// Active reports whether any region is active.
func (s Snapshot) Active() bool {
	for _, st := range s.Regions {
		if st.Active() {
			return true
		}
	}
	return false
}

// StateFlag renders an active flag as the "1"/"0" sensor value.
func StateFlag(active bool) string {
	if active {
		return "1"
	}
	return "0"
}
