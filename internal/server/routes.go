package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/notes"
)

func (s *Server) handleSessionInit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Project   string `json:"project"`
		StartedAt int64  `json:"started_at"` // epoch ms, 0 means now
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if req.StartedAt < 0 {
		writeError(w, http.StatusBadRequest, "started_at must not be negative")
		return
	}

	var startedAt time.Time
	if req.StartedAt > 0 {
		startedAt = time.UnixMilli(req.StartedAt)
	}
	sess, created, err := s.reg.Init(req.SessionID, req.Project, startedAt)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"project":    sess.Project,
		"started_at": sess.StartedAt.UnixMilli(),
		"status":     "active",
		"created":    created,
		"note_count": sess.Store.Len(),
	})
}

func (s *Server) handleAddNotes(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	ns, err := notes.ParseJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(ns) == 0 {
		writeError(w, http.StatusBadRequest, "no notes in body")
		return
	}

	count, err := s.reg.AddNotes(sessionID, ns...)
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":     "ok",
		"added":      len(ns),
		"note_count": count,
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	res, err := s.reg.Aggregate(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMultiScale(w http.ResponseWriter, r *http.Request) {
	res, err := s.reg.MultiScale(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	act, err := s.reg.Activity(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

// decideRequest mirrors engine.DecisionContext with last_prompt_at as epoch ms.
type decideRequest struct {
	Stage         string                `json:"stage"`
	Critical      bool                  `json:"critical"`
	GoalCompleted bool                  `json:"goal_completed"`
	RecentAction  bool                  `json:"recent_action"`
	CurrentState  *engine.StateSnapshot `json:"current_state"`
	PreviousState *engine.StateSnapshot `json:"previous_state"`
	LastPromptAt  int64                 `json:"last_prompt_at"`
}

func (req decideRequest) decisionContext() engine.DecisionContext {
	dc := engine.DecisionContext{
		Stage:         req.Stage,
		Critical:      req.Critical,
		GoalCompleted: req.GoalCompleted,
		RecentAction:  req.RecentAction,
		CurrentState:  req.CurrentState,
		PreviousState: req.PreviousState,
	}
	if req.LastPromptAt > 0 {
		t := time.UnixMilli(req.LastPromptAt)
		dc.LastPromptAt = &t
	}
	return dc
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	d, err := s.reg.Decide(chi.URLParam(r, "sessionID"), req.decisionContext())
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.reg.End(chi.URLParam(r, "sessionID")); err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.reg.Stats(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleListSessions returns the live session ids and, with a journal, the
// most recent journaled sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"live": s.reg.IDs()}

	if s.db != nil {
		limit := queryInt(r, "limit", 20)
		recent, err := s.db.GetRecentSessions(limit)
		if err != nil {
			s.writeSessionError(w, r, err)
			return
		}
		type row struct {
			SessionID     string `json:"session_id"`
			Project       string `json:"project,omitempty"`
			Status        string `json:"status"`
			StartedAt     int64  `json:"started_at"`
			NoteCount     int    `json:"note_count"`
			DecisionCount int    `json:"decision_count"`
		}
		rows := make([]row, 0, len(recent))
		for _, sess := range recent {
			rows = append(rows, row{
				SessionID:     sess.SessionID,
				Project:       sess.Project,
				Status:        sess.Status,
				StartedAt:     sess.StartedAt,
				NoteCount:     sess.NoteCount,
				DecisionCount: sess.DecisionCount,
			})
		}
		resp["recent"] = rows
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	recs, err := s.db.GetDecisions(sessionID, queryInt(r, "limit", 20))
	if err != nil {
		s.writeSessionError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(recs))
	for _, d := range recs {
		out = append(out, map[string]any{
			"should_prompt": d.ShouldPrompt,
			"urgency":       d.Urgency,
			"reason":        d.Reason,
			"stage":         d.Stage,
			"note_count":    d.NoteCount,
			"created_at":    d.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "decisions": out})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
