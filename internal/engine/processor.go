package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

// ProcessPath records how a ProcessResult was produced.
type ProcessPath string

const (
	PathCache      ProcessPath = "cache"
	PathSync       ProcessPath = "sync"
	PathBackground ProcessPath = "background"
)

// ProcessResult is the processor's answer for one request.
type ProcessResult struct {
	Aggregated AggregatedResult `json:"aggregated"`
	MultiScale MultiScaleResult `json:"multi_scale"`
	Path       ProcessPath      `json:"path"`
	Activity   Activity         `json:"activity"`
	CacheAgeMS int64            `json:"cache_age_ms,omitempty"`
	Patterns   []Pattern        `json:"patterns,omitempty"`
}

// Processor picks between a cached snapshot, a synchronous pass and a
// background preprocessing pass based on how busy the session is.
//
// One Processor serves one session. Process may be called concurrently;
// at most one preprocessing pass runs at a time and extra triggers are
// dropped rather than queued.
type Processor struct {
	cfg    config.EngineConfig
	agg    *Aggregator
	multi  *MultiScaleAggregator
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time

	interval   time.Duration
	inProgress atomic.Bool
	wg         sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces time.Now, for cache-age tests.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor builds a processor from engine and cache settings.
func NewProcessor(cfg config.EngineConfig, cacheCfg config.CacheConfig, opts ...Option) (*Processor, error) {
	if err := cacheCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}
	agg, err := NewAggregator(cfg)
	if err != nil {
		return nil, err
	}
	multi, err := NewMultiScaleAggregator(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		cfg:      cfg,
		agg:      agg,
		multi:    multi,
		logger:   slog.Default(),
		now:      time.Now,
		interval: cacheCfg.PreprocessInterval,
		stopCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cache = NewCache(cacheCfg, p.now)
	return p, nil
}

// Aggregator returns the single-scale aggregator the processor uses.
func (p *Processor) Aggregator() *Aggregator {
	return p.agg
}

// MultiScale returns the multi-scale aggregator the processor uses.
func (p *Processor) MultiScale() *MultiScaleAggregator {
	return p.multi
}

// Cache exposes the processor's snapshot slot.
func (p *Processor) Cache() *Cache {
	return p.cache
}

// Process classifies the store's recent activity and serves an aggregation.
//
//   - busy and interactive: cached snapshot if valid, otherwise a sync pass
//   - quiet and stable: a preprocessing pass the caller waits for, which
//     also refreshes the cache
//   - anything else: cached snapshot if valid, otherwise an uncached sync pass
func (p *Processor) Process(ctx context.Context, store *notes.Store) (ProcessResult, error) {
	ns := store.Snapshot()
	act := ClassifyActivity(ns, -1, p.cfg.Activity)

	switch {
	case act.Level == ActivityHigh && act.HasUserInteraction:
		if r, ok := p.fromCache(len(ns), act); ok {
			return r, nil
		}
		return p.compute(ctx, ns, act)

	case act.Level == ActivityLow && act.IsStable:
		snap, ran, err := p.preprocess(ctx, ns)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ProcessResult{}, ctxErr
		}
		if ran && err == nil {
			return ProcessResult{
				Aggregated: snap.Aggregated,
				MultiScale: snap.MultiScale,
				Path:       PathBackground,
				Activity:   act,
				Patterns:   snap.Patterns,
			}, nil
		}
		if !ran {
			p.logger.Debug("preprocess already running, serving directly", "notes", len(ns))
		}
	}

	if r, ok := p.fromCache(len(ns), act); ok {
		return r, nil
	}
	return p.compute(ctx, ns, act)
}

func (p *Processor) fromCache(count int, act Activity) (ProcessResult, bool) {
	snap, ok := p.cache.Get(count)
	if !ok {
		return ProcessResult{}, false
	}
	age := p.now().Sub(snap.PreprocessedAt)
	return ProcessResult{
		Aggregated: snap.Aggregated,
		MultiScale: snap.MultiScale,
		Path:       PathCache,
		Activity:   act,
		CacheAgeMS: age.Milliseconds(),
		Patterns:   snap.Patterns,
	}, true
}

func (p *Processor) compute(ctx context.Context, ns []notes.Note, act Activity) (ProcessResult, error) {
	multi, err := p.multi.Aggregate(ctx, ns)
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{
		Aggregated: p.agg.Aggregate(ns),
		MultiScale: multi,
		Path:       PathSync,
		Activity:   act,
	}, nil
}

type passOutcome struct {
	snap Snapshot
	err  error
}

// preprocess runs one full pass in its own goroutine and waits for it.
// ran is false when another pass already holds the in-progress flag.
func (p *Processor) preprocess(ctx context.Context, ns []notes.Note) (snap Snapshot, ran bool, err error) {
	if !p.inProgress.CompareAndSwap(false, true) {
		return Snapshot{}, false, nil
	}

	done := make(chan passOutcome, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		snap, err := p.runPass(ctx, ns)
		if err == nil {
			p.cache.Store(snap)
		}
		// Released before the outcome is reported.
		p.inProgress.Store(false)

		if err != nil {
			p.logger.Warn("preprocess failed", "notes", len(ns), "err", err)
		} else {
			p.logger.Debug("preprocess complete", "notes", len(ns), "patterns", len(snap.Patterns))
		}
		done <- passOutcome{snap: snap, err: err}
	}()

	select {
	case out := <-done:
		return out.snap, true, out.err
	case <-ctx.Done():
		return Snapshot{}, true, ctx.Err()
	}
}

// runPass builds a complete snapshot. A panic anywhere in the pass is
// turned into an error so the cache is never left half-written.
func (p *Processor) runPass(ctx context.Context, ns []notes.Note) (snap Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preprocess panic: %v", r)
		}
	}()

	multi, err := p.multi.Aggregate(ctx, ns)
	if err != nil {
		return Snapshot{}, err
	}
	agg := p.agg.Aggregate(ns)
	return Snapshot{
		Aggregated:     agg,
		MultiScale:     multi,
		Coherence:      agg.Coherence,
		PrunedNotes:    PruneNotes(ns, p.cfg.MaxPrunedNotes),
		Patterns:       DetectPatterns(agg.Windows, ns),
		PreprocessedAt: p.now(),
		NoteCount:      len(ns),
	}, nil
}

// Preprocess runs an opportunistic pass when the session has gone quiet and
// the cache is stale. It reports whether a pass completed.
func (p *Processor) Preprocess(store *notes.Store) bool {
	ns := store.Snapshot()
	if len(ns) == 0 || p.cache.Valid(len(ns)) {
		return false
	}
	act := ClassifyActivity(ns, store.Now(p.now()), p.cfg.Activity)
	if act.Level != ActivityLow {
		return false
	}
	_, ran, err := p.preprocess(p.ctx, ns)
	return ran && err == nil
}

// StartPreprocessTimer runs Preprocess on startup and then every
// preprocess interval until Close. A non-positive interval only runs the
// startup pass.
func (p *Processor) StartPreprocessTimer(store *notes.Store) {
	p.Preprocess(store)
	if p.interval <= 0 {
		p.logger.Warn("preprocess interval not positive, timer disabled", "interval", p.interval)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.Preprocess(store)
			case <-p.stopCh:
				return
			}
		}
	}()
}

// Close stops the preprocess timer, waits for in-flight passes and clears
// the cache. It is safe to call more than once.
func (p *Processor) Close() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.cancel()
	})
	p.wg.Wait()
	p.cache.Clear()
}
