package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/notes"
)

func newTestProcessor(t *testing.T, clock *fakeClock) *Processor {
	t.Helper()
	cacheCfg := config.DefaultCache()
	cacheCfg.PreprocessInterval = time.Hour
	p, err := NewProcessor(config.DefaultEngine(), cacheCfg,
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func storeWith(clock *fakeClock, ns ...notes.Note) *notes.Store {
	s := notes.NewStore(clock.Now())
	s.Append(ns...)
	return s
}

// busyStore is a high-rate burst ending in a user interaction.
func busyStore(clock *fakeClock) *notes.Store {
	ns := burst(20, 50, 6)
	ns[19].Step = "click submit"
	return storeWith(clock, ns...)
}

// quietStore has a low rate and a flat recent score.
func quietStore(clock *fakeClock) *notes.Store {
	return storeWith(clock, note(0, 6, "form ready"), note(3000, 6, "form ready"), note(4000, 6, "form ready"), note(5000, 6, "form ready"))
}

func TestNewProcessorRejectsBadConfig(t *testing.T) {
	cacheCfg := config.DefaultCache()
	cacheCfg.MaxAge = 0
	_, err := NewProcessor(config.DefaultEngine(), cacheCfg)
	require.Error(t, err)

	engineCfg := config.DefaultEngine()
	engineCfg.WindowSize = -time.Second
	_, err = NewProcessor(engineCfg, config.DefaultCache())
	require.Error(t, err)

	cacheCfg = config.DefaultCache()
	cacheCfg.PreprocessInterval = 0
	_, err = NewProcessor(config.DefaultEngine(), cacheCfg)
	require.Error(t, err)
}

func TestProcessBusyInteractiveComputesWhenCacheEmpty(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	store := busyStore(clock)

	res, err := p.Process(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, PathSync, res.Path)
	assert.Equal(t, ActivityHigh, res.Activity.Level)
	assert.True(t, res.Activity.HasUserInteraction)
	assert.Equal(t, 20, res.Aggregated.TotalNotes)
	assert.False(t, p.Cache().Valid(store.Len()), "busy path never fills the cache")
}

func TestProcessBusyInteractiveServesCache(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	store := busyStore(clock)

	p.Cache().Store(Snapshot{
		Aggregated:     AggregatedResult{Summary: "cached"},
		PreprocessedAt: clock.Now(),
		NoteCount:      20,
	})
	clock.Advance(1500 * time.Millisecond)

	res, err := p.Process(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, PathCache, res.Path)
	assert.Equal(t, "cached", res.Aggregated.Summary)
	assert.Equal(t, int64(1500), res.CacheAgeMS)

	clock.Advance(4 * time.Second)
	res, err = p.Process(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, PathSync, res.Path)
}

func TestProcessQuietRunsBackgroundPass(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	store := quietStore(clock)

	res, err := p.Process(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, PathBackground, res.Path)
	assert.Equal(t, ActivityLow, res.Activity.Level)
	assert.True(t, res.Activity.IsStable)
	assert.Equal(t, 4, res.Aggregated.TotalNotes)
	assert.Len(t, res.MultiScale.Order, 4)

	snap, ok := p.Cache().Get(store.Len())
	require.True(t, ok)
	assert.Equal(t, 4, snap.NoteCount)
	assert.Equal(t, clock.Now(), snap.PreprocessedAt)
	assert.Len(t, snap.PrunedNotes, 4)
	assert.Equal(t, res.Aggregated, snap.Aggregated)
	assert.False(t, p.inProgress.Load())
}

func TestProcessDroppedTriggerFallsThrough(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	store := quietStore(clock)

	p.inProgress.Store(true)
	res, err := p.Process(context.Background(), store)
	p.inProgress.Store(false)
	require.NoError(t, err)

	assert.Equal(t, PathSync, res.Path)
	assert.False(t, p.Cache().Valid(store.Len()))
}

func TestProcessMediumUsesCacheThenSync(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	store := storeWith(clock, burst(5, 500, 5)...)

	res, err := p.Process(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, ActivityMedium, res.Activity.Level)
	assert.Equal(t, PathSync, res.Path)
	assert.False(t, p.Cache().Valid(store.Len()), "third-tier sync result is not cached")

	p.Cache().Store(Snapshot{PreprocessedAt: clock.Now(), NoteCount: 5})
	res, err = p.Process(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, PathCache, res.Path)

	clock.Advance(6 * time.Second)
	res, err = p.Process(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, PathSync, res.Path)
}

func TestProcessCancelledLeavesCacheUntouched(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	store := quietStore(clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, store)
	require.ErrorIs(t, err, context.Canceled)

	p.wg.Wait()
	assert.False(t, p.Cache().Valid(store.Len()))
	assert.False(t, p.inProgress.Load())
}

func TestPreprocessRecoversFromPanic(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	p.multi = nil

	_, ran, err := p.preprocess(context.Background(), quietStore(clock).Snapshot())
	require.True(t, ran)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preprocess panic")
	assert.False(t, p.inProgress.Load())
	assert.False(t, p.Cache().Valid(4))
}

func TestPreprocessRecoversFromScalePanic(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	p.multi.weigh = func(notes.Note, int64, float64) float64 { panic("boom") }

	var (
		ran bool
		err error
	)
	require.NotPanics(t, func() {
		_, ran, err = p.preprocess(context.Background(), quietStore(clock).Snapshot())
	})
	require.True(t, ran)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")
	assert.False(t, p.inProgress.Load())
	assert.False(t, p.Cache().Valid(4))
}

func TestPreprocessTimerZeroIntervalRunsStartupPassOnly(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)
	p.interval = 0

	store := notes.NewStore(clock.Now().Add(-time.Minute))
	store.Append(burst(10, 100, 5)...)

	require.NotPanics(t, func() { p.StartPreprocessTimer(store) })
	assert.True(t, p.Cache().Valid(store.Len()))
}

func TestPreprocessTimerWarmsQuietSession(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)

	store := notes.NewStore(clock.Now().Add(-time.Minute))
	store.Append(burst(10, 100, 5)...)

	p.StartPreprocessTimer(store)
	assert.True(t, p.Cache().Valid(store.Len()))

	p.Close()
	p.Close()
	assert.False(t, p.Cache().Valid(store.Len()))
}

func TestPreprocessSkipsBusySession(t *testing.T) {
	clock := newFakeClock()
	p := newTestProcessor(t, clock)

	store := notes.NewStore(clock.Now().Add(-time.Second))
	store.Append(burst(20, 50, 5)...)

	assert.False(t, p.Preprocess(store))
	assert.False(t, p.Cache().Valid(store.Len()))
}
