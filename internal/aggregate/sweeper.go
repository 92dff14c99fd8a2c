package aggregate

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"alertrelay/internal/logger"
)

// Sweeper periodically expires old entries from a Store. It is stopped via
// its context or Stop; a sweep in progress always completes.
type Sweeper struct {
	store    *Store
	interval time.Duration
	clock    clock.Clock
	onSweep  func(removed int)
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper but does not start it.
func NewSweeper(store *Store, interval time.Duration, clk clock.Clock) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		clock:    clk,
		done:     make(chan struct{}),
	}
}

// OnSweep registers a callback invoked with the number of removed entries
// after every sweep that removed something. Must be called before Start.
func (p *Sweeper) OnSweep(fn func(removed int)) {
	p.onSweep = fn
}

// Start begins the background loop.
func (p *Sweeper) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
	logger.Debugf("Expiry sweeper started (interval=%s, expiry=%s)", p.interval, p.store.Expiry())
}

// Stop signals the loop to exit and waits for it.
func (p *Sweeper) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Done is closed once the loop has exited.
func (p *Sweeper) Done() <-chan struct{} {
	return p.done
}

func (p *Sweeper) loop(ctx context.Context) {
	defer close(p.done)

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Sweeper) sweep() {
	removed := p.store.Sweep(p.clock.Now().UTC())
	if removed > 0 {
		logger.Infof("Expired %d alert entries", removed)
		if p.onSweep != nil {
			p.onSweep(removed)
		}
	}
}
