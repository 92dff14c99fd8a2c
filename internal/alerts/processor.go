package alerts

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"alertrelay/internal/logger"
	"alertrelay/internal/rules"
	"alertrelay/internal/transform/pushy"
	"alertrelay/pkg/models"
)

// DropReason names why a message produced no records. Empty means accepted.
type DropReason string

const (
	Accepted      DropReason = ""
	DropMalformed DropReason = "malformed"
	DropNoID      DropReason = "no_id"
	DropDuplicate DropReason = "duplicate"
	DropNoTime    DropReason = "unknown_time"
	DropStale     DropReason = "stale"
	DropUnwatched DropReason = "unwatched"
)

// Config controls alert filtering.
type Config struct {
	Regions     []string
	RegionNames map[string]string
	MaxAge      time.Duration
	Location    *time.Location
	DedupSize   int
	LogRaw      bool
}

// Result is the outcome of an accepted message.
type Result struct {
	Class   models.Classification
	Regions []string
	Records []models.AlertRecord
	Latency time.Duration
}

// Processor turns raw payloads into per-region alert records.
type Processor struct {
	mu         sync.Mutex
	cfg        Config
	watched    map[string]struct{}
	classifier rules.Classifier
	dedup      *DedupWindow
	clock      clock.Clock
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock sets the time source.
func WithClock(clk clock.Clock) Option {
	return func(p *Processor) {
		p.clock = clk
	}
}

// NewProcessor creates a processor. A nil classifier uses the default titles.
func NewProcessor(cfg Config, classifier rules.Classifier, opts ...Option) *Processor {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 45 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if classifier == nil {
		classifier = rules.NewTitleClassifier(nil)
	}
	watched := make(map[string]struct{}, len(cfg.Regions))
	for _, r := range cfg.Regions {
		if r = strings.TrimSpace(r); r != "" {
			watched[r] = struct{}{}
		}
	}
	p := &Processor{
		cfg:        cfg,
		watched:    watched,
		classifier: classifier,
		dedup:      NewDedupWindow(cfg.DedupSize),
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle decodes and processes one raw payload.
func (p *Processor) Handle(payload []byte) (*Result, DropReason) {
	if p.cfg.LogRaw {
		logger.Debugf("Raw payload: %s", payload)
	}
	msg, err := pushy.Parse(payload)
	if err != nil {
		logger.Warnf("Dropping malformed payload: %v", err)
		return nil, DropMalformed
	}
	return p.Process(msg, p.clock.Now())
}

// Process filters and classifies msg as received at now.
func (p *Processor) Process(msg *models.AlertMessage, now time.Time) (*Result, DropReason) {
	now = now.UTC()
	id := msg.DedupID()
	if id == "" {
		logger.Warnf("Dropping alert without id (title=%q)", msg.Title)
		return nil, DropNoID
	}

	p.mu.Lock()
	if p.dedup.Contains(id) {
		p.mu.Unlock()
		logger.Debugf("Duplicate alert %s ignored", id)
		return nil, DropDuplicate
	}
	p.dedup.Add(id)
	p.mu.Unlock()

	eventTime, ok := ParseEventTime(msg.Time, p.cfg.Location)
	if !ok {
		logger.Warnf("Skipped alert %s with unparseable time %q", id, msg.Time)
		return nil, DropNoTime
	}
	latency := now.Sub(eventTime)
	if latency > p.cfg.MaxAge {
		logger.Warnf("Skipped stale alert %s (lat=%.1fs)", id, latency.Seconds())
		return nil, DropStale
	}

	var hits []string
	matched := make(map[string]struct{})
	for _, region := range msg.Regions() {
		if _, ok := p.watched[region]; !ok {
			continue
		}
		if _, dup := matched[region]; dup {
			continue
		}
		matched[region] = struct{}{}
		hits = append(hits, region)
	}
	if len(hits) == 0 {
		logger.Debugf("Alert %s has no watched regions (%s)", id, msg.CitiesIDs)
		return nil, DropUnwatched
	}

	class := p.classifier.Classify(msg)
	alertDate := eventTime.In(p.cfg.Location).Format(displayLayout)
	records := make([]models.AlertRecord, 0, len(hits))
	for _, region := range hits {
		records = append(records, models.AlertRecord{
			ID:          id,
			Title:       strings.TrimSpace(msg.Title),
			RegionID:    region,
			Data:        p.regionName(region),
			Category:    msg.ThreatID,
			Description: msg.Desc,
			AlertDate:   alertDate,
			AlertTime:   eventTime,
			ReceivedAt:  now,
		})
	}
	logger.Infof("Alert %s %q -> regions=%v lat=%.1fs class=%s", id, msg.Title, hits, latency.Seconds(), class)

	return &Result{
		Class:   class,
		Regions: hits,
		Records: records,
		Latency: latency,
	}, Accepted
}

func (p *Processor) regionName(region string) string {
	if name, ok := p.cfg.RegionNames[region]; ok && name != "" {
		return name
	}
	return region
}
