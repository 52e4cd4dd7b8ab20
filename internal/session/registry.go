// Package session owns the live note sessions: one note store, processor and
// decision manager per session id, optionally journaled to SQLite.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/notes"
	"github.com/lazypower/cadence/internal/store"
)

// ErrNotFound is returned for session ids the registry does not hold.
var ErrNotFound = errors.New("session not found")

// Session is one live note stream and the engine instances bound to it.
type Session struct {
	ID        string
	Project   string
	StartedAt time.Time
	Store     *notes.Store
	Processor *engine.Processor
	Decisions *engine.DecisionManager
}

// Stats is a point-in-time summary of a session.
type Stats struct {
	SessionID  string          `json:"session_id"`
	Project    string          `json:"project,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	NoteCount  int             `json:"note_count"`
	Activity   engine.Activity `json:"activity"`
	CacheValid bool            `json:"cache_valid"`
	CacheAgeMS int64           `json:"cache_age_ms,omitempty"`
}

// Registry maps session ids to live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	engineCfg config.EngineConfig
	cacheCfg  config.CacheConfig
	db        *store.DB
	logger    *slog.Logger
	now       func() time.Time
	timers    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithJournal persists sessions, notes and decisions to db.
func WithJournal(db *store.DB) Option {
	return func(r *Registry) { r.db = db }
}

// WithLogger sets the registry's logger; processors inherit it.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now for sessions and their processors.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithPreprocessTimers starts each session's preprocess timer on creation.
func WithPreprocessTimers() Option {
	return func(r *Registry) { r.timers = true }
}

// NewRegistry validates the engine and cache settings and returns an empty registry.
func NewRegistry(engineCfg config.EngineConfig, cacheCfg config.CacheConfig, opts ...Option) (*Registry, error) {
	if err := engineCfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := cacheCfg.Validate(); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	r := &Registry{
		sessions:  make(map[string]*Session),
		engineCfg: engineCfg,
		cacheCfg:  cacheCfg,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Init returns the session for id, creating it if needed. An empty id gets a
// fresh UUID; a zero startedAt means now. Sessions already in the journal
// are resumed with their original start and notes. created reports whether
// a new live session was built.
func (r *Registry) Init(id, project string, startedAt time.Time) (sess *Session, created bool, err error) {
	if id == "" {
		id = uuid.NewString()
	}
	if startedAt.IsZero() {
		startedAt = r.now()
	}

	sess, created, err = r.create(id, project, startedAt)
	if err != nil || !created {
		return sess, created, err
	}
	// The startup pass runs over the resumed backlog, so it starts after
	// the registry lock is released.
	if r.timers {
		sess.Processor.StartPreprocessTimer(sess.Store)
	}
	return sess, true, nil
}

func (r *Registry) create(id, project string, startedAt time.Time) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s, false, nil
	}

	var backlog []notes.Note
	if r.db != nil {
		row, err := r.db.InitSession(id, project, startedAt.UnixMilli())
		if err != nil {
			return nil, false, fmt.Errorf("journal session %s: %w", id, err)
		}
		startedAt = time.UnixMilli(row.StartedAt)
		if row.Project != "" {
			project = row.Project
		}
		backlog, err = r.db.GetNotes(id)
		if err != nil {
			return nil, false, fmt.Errorf("load notes for %s: %w", id, err)
		}
	}

	proc, err := engine.NewProcessor(r.engineCfg, r.cacheCfg,
		engine.WithLogger(r.logger.With("session", id)),
		engine.WithClock(r.now),
	)
	if err != nil {
		return nil, false, err
	}
	dm, err := engine.NewDecisionManager(r.engineCfg)
	if err != nil {
		proc.Close()
		return nil, false, err
	}

	s := &Session{
		ID:        id,
		Project:   project,
		StartedAt: startedAt,
		Store:     notes.NewStore(startedAt),
		Processor: proc,
		Decisions: dm,
	}
	s.Store.Append(backlog...)
	r.sessions[id] = s

	r.logger.Info("session started", "session", id, "project", project, "resumed_notes", len(backlog))
	return s, true, nil
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// AddNotes journals ns (when a journal is configured) and appends them to
// the session's store. It returns the session's new note count.
func (r *Registry) AddNotes(id string, ns ...notes.Note) (int, error) {
	s, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	if r.db != nil {
		if err := r.db.AddNotes(id, ns...); err != nil {
			return 0, fmt.Errorf("journal notes: %w", err)
		}
	}
	s.Store.Append(ns...)
	return s.Store.Len(), nil
}

// Aggregate runs the adaptive processor for the session.
func (r *Registry) Aggregate(ctx context.Context, id string) (engine.ProcessResult, error) {
	s, err := r.Get(id)
	if err != nil {
		return engine.ProcessResult{}, err
	}
	return s.Processor.Process(ctx, s.Store)
}

// MultiScale computes the multi-scale view directly, bypassing the cache.
func (r *Registry) MultiScale(ctx context.Context, id string) (engine.MultiScaleResult, error) {
	s, err := r.Get(id)
	if err != nil {
		return engine.MultiScaleResult{}, err
	}
	return s.Processor.MultiScale().Aggregate(ctx, s.Store.Snapshot())
}

// Activity classifies the session's recent notes as of its newest note.
func (r *Registry) Activity(id string) (engine.Activity, error) {
	s, err := r.Get(id)
	if err != nil {
		return engine.Activity{}, err
	}
	return engine.ClassifyActivity(s.Store.Snapshot(), -1, r.engineCfg.Activity), nil
}

// Decide asks the session's decision manager whether to prompt now and
// journals the outcome. A journal failure is logged, not returned.
func (r *Registry) Decide(id string, dc engine.DecisionContext) (engine.Decision, error) {
	s, err := r.Get(id)
	if err != nil {
		return engine.Decision{}, err
	}
	if dc.Now.IsZero() {
		dc.Now = r.now()
	}
	ns := s.Store.Snapshot()
	d := s.Decisions.Decide(ns, dc)

	if r.db != nil {
		rec := store.DecisionRecord{
			SessionID:    id,
			ShouldPrompt: d.ShouldPrompt,
			Urgency:      string(d.Urgency),
			Reason:       d.Reason,
			Stage:        dc.Stage,
			NoteCount:    len(ns),
			CreatedAt:    dc.Now.UnixMilli(),
		}
		if err := r.db.RecordDecision(rec); err != nil {
			r.logger.Warn("journal decision failed", "session", id, "err", err)
		}
	}
	return d, nil
}

// Stats summarises a live session.
func (r *Registry) Stats(id string) (Stats, error) {
	s, err := r.Get(id)
	if err != nil {
		return Stats{}, err
	}
	ns := s.Store.Snapshot()
	st := Stats{
		SessionID:  s.ID,
		Project:    s.Project,
		StartedAt:  s.StartedAt,
		NoteCount:  len(ns),
		Activity:   engine.ClassifyActivity(ns, -1, r.engineCfg.Activity),
		CacheValid: s.Processor.Cache().Valid(len(ns)),
	}
	if age, ok := s.Processor.Cache().Age(); ok {
		st.CacheAgeMS = age.Milliseconds()
	}
	return st, nil
}

// End closes the session's processor, drops it from the registry and marks
// it completed in the journal.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.Processor.Close()
	if r.db != nil {
		if err := r.db.EndSession(id); err != nil {
			return err
		}
	}
	r.logger.Info("session ended", "session", id, "notes", s.Store.Len())
	return nil
}

// IDs returns the live session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops every session's processor without ending them in the journal,
// so they can be resumed by the next process.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Processor.Close()
	}
}
