package pipeline

import (
	"context"
	"sync"
	"time"

	"alertrelay/internal/aggregate"
	"alertrelay/internal/alerts"
	"alertrelay/internal/logger"
	"alertrelay/internal/metrics"
	"alertrelay/pkg/models"
)

// Relay feeds payloads from a source through the processor into the state
// store and publishes a snapshot to every writer after each change.
type Relay struct {
	source       MessageSource
	processor    *alerts.Processor
	store        *aggregate.Store
	sweeper      *aggregate.Sweeper
	writers      []NamedWriter
	metrics      *metrics.Metrics
	writeTimeout time.Duration
}

// Option configures a Relay.
type Option func(*Relay)

// WithMetrics records relay activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithWriteTimeout bounds each sink write.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRelay creates a relay. The sweeper may be nil.
func NewRelay(source MessageSource, processor *alerts.Processor, store *aggregate.Store, sweeper *aggregate.Sweeper, writers []NamedWriter, opts ...Option) *Relay {
	r := &Relay{
		source:       source,
		processor:    processor,
		store:        store,
		sweeper:      sweeper,
		writers:      writers,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sweeper != nil && r.metrics != nil {
		m := r.metrics
		r.sweeper.OnSweep(func(removed int) {
			m.EntriesExpired.Add(float64(removed))
		})
	}
	return r
}

// Run blocks until ctx is cancelled or the source fails. The initial empty
// state is published before the first message is read.
func (r *Relay) Run(ctx context.Context) error {
	logger.Infof("Alert relay started (%d sinks)", len(r.writers))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.store.Notify()
	if r.sweeper != nil {
		r.sweeper.Start(ctx)
		defer r.sweeper.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.publishLoop(ctx)
	}()

	err := r.source.Run(ctx, r.Handle)
	if err != nil && ctx.Err() == nil {
		logger.Errorf("Alert source stopped: %v", err)
	}
	cancel()
	wg.Wait()
	logger.Infof("Alert relay stopped")
	return err
}

// Handle processes one raw payload and applies the result to the store.
func (r *Relay) Handle(payload []byte) {
	if r.metrics != nil {
		r.metrics.MessagesReceived.Inc()
	}
	res, reason := r.processor.Handle(payload)
	if reason != alerts.Accepted {
		if r.metrics != nil {
			r.metrics.MessagesDropped.WithLabelValues(string(reason)).Inc()
		}
		return
	}
	r.store.Apply(res.Class, res.Records)
	if r.metrics != nil {
		r.metrics.AlertsApplied.WithLabelValues(res.Class.String()).Inc()
		r.metrics.ObserveLatency(res.Latency)
	}
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.store.Changes():
			r.publish(ctx, r.store.Snapshot())
		}
	}
}

func (r *Relay) publish(ctx context.Context, snap models.Snapshot) {
	if r.metrics != nil {
		active := 0
		for _, st := range snap.Regions {
			if st.Active() {
				active++
			}
		}
		r.metrics.ActiveRegions.Set(float64(active))
	}

	for _, w := range r.writers {
		wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
		err := w.Writer.WriteSnapshot(wctx, snap)
		cancel()
		if err != nil {
			logger.Errorf("Failed to write snapshot to %s: %v", w.Name, err)
			if r.metrics != nil {
				r.metrics.PublishErrors.WithLabelValues(w.Name).Inc()
			}
			continue
		}
		if r.metrics != nil {
			r.metrics.Publishes.WithLabelValues(w.Name).Inc()
		}
	}
}

// Close releases all writers.
func (r *Relay) Close() error {
	for _, w := range r.writers {
		if err := w.Writer.Close(); err != nil {
			logger.Errorf("Failed to close %s writer: %v", w.Name, err)
		}
	}
	return nil
}
