package aggregate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"alertrelay/pkg/models"
)

// Store holds the live alert state of every region under a single lock.
type Store struct {
	mu      sync.Mutex
	expiry  time.Duration
	regions map[string]*models.RegionState
	changes chan struct{}
	clock   clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for snapshot timestamps.
func WithClock(clk clock.Clock) Option {
	return func(s *Store) {
		s.clock = clk
	}
}

// NewStore creates a store pre-populated with empty state for regions.
func NewStore(expiry time.Duration, regions []string, opts ...Option) *Store {
	if expiry <= 0 {
		expiry = 600 * time.Second
	}
	s := &Store{
		expiry:  expiry,
		regions: make(map[string]*models.RegionState, len(regions)),
		changes: make(chan struct{}, 1),
		clock:   clock.New(),
	}
	for _, r := range regions {
		s.regions[r] = &models.RegionState{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply adds records to their regions. An active record clears the region's
// updates and an update clears its active alerts.
func (s *Store) Apply(class models.Classification, records []models.AlertRecord) {
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	for _, rec := range records {
		st := s.regions[rec.RegionID]
		if st == nil {
			st = &models.RegionState{}
			s.regions[rec.RegionID] = st
		}
		if class == models.ClassActive {
			st.UpdateAlerts = nil
			st.ActiveAlerts = append(st.ActiveAlerts, rec)
		} else {
			st.ActiveAlerts = nil
			st.UpdateAlerts = append(st.UpdateAlerts, rec)
		}
	}
	s.mu.Unlock()

	s.Notify()
}

// Sweep drops entries whose age reached the expiry and returns how many
// were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	removed := 0
	for _, st := range s.regions {
		var n int
		st.ActiveAlerts, n = s.prune(st.ActiveAlerts, now)
		removed += n
		st.UpdateAlerts, n = s.prune(st.UpdateAlerts, now)
		removed += n
	}
	s.mu.Unlock()

	if removed > 0 {
		s.Notify()
	}
	return removed
}

func (s *Store) prune(list []models.AlertRecord, now time.Time) ([]models.AlertRecord, int) {
	kept := list[:0]
	for _, rec := range list {
		if now.Sub(rec.AlertTime) >= s.expiry {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(list) - len(kept)
	if len(kept) == 0 {
		return nil, removed
	}
	return kept, removed
}

// Snapshot copies the current state out of the lock.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := models.Snapshot{
		TakenAt: s.clock.Now().UTC(),
		Regions: make(map[string]models.RegionState, len(s.regions)),
	}
	for id, st := range s.regions {
		snap.Regions[id] = models.RegionState{
			ActiveAlerts: append([]models.AlertRecord{}, st.ActiveAlerts...),
			UpdateAlerts: append([]models.AlertRecord{}, st.UpdateAlerts...),
		}
	}
	return snap
}

// Changes delivers a signal after every state change. Signals coalesce:
// several changes before the consumer reads produce one signal.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Notify raises a change signal without changing state.
func (s *Store) Notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Expiry returns the configured entry lifetime.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}
