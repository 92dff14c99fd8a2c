package alerts

// DedupWindow remembers the most recent ids in arrival order and evicts the
// oldest once full.
type DedupWindow struct {
	ring []string
	next int
	full bool
	seen map[string]struct{}
}

// NewDedupWindow creates a window holding up to size ids.
func NewDedupWindow(size int) *DedupWindow {
	if size <= 0 {
		size = 2000
	}
	return &DedupWindow{
		ring: make([]string, size),
		seen: make(map[string]struct{}, size),
	}
}

// Contains reports whether id is in the window.
func (d *DedupWindow) Contains(id string) bool {
	_, ok := d.seen[id]
	return ok
}

// Add records id. Adding an id already present is a no-op.
func (d *DedupWindow) Add(id string) {
	if d.Contains(id) {
		return
	}
	if d.full {
		delete(d.seen, d.ring[d.next])
	}
	d.ring[d.next] = id
	d.seen[id] = struct{}{}
	d.next++
	if d.next == len(d.ring) {
		d.next = 0
		d.full = true
	}
}

// Len returns the number of remembered ids.
func (d *DedupWindow) Len() int {
	return len(d.seen)
}

// Cap returns the window capacity.
func (d *DedupWindow) Cap() int {
	return len(d.ring)
}
