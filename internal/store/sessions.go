package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is the journal row for one note session.
type Session struct {
	ID            int64
	SessionID     string
	Project       string
	StartedAt     int64
	EndedAt       *int64
	Status        string
	NoteCount     int
	DecisionCount int
}

const sessionColumns = `id, session_id, COALESCE(project, ''), started_at, ended_at, status, note_count, decision_count`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	if err := row.Scan(&s.ID, &s.SessionID, &s.Project, &s.StartedAt, &s.EndedAt, &s.Status, &s.NoteCount, &s.DecisionCount); err != nil {
		return nil, err
	}
	return &s, nil
}

// InitSession creates or resumes a session. An existing session keeps its
// start time and notes; a completed one is reactivated.
// startedAt is epoch milliseconds; 0 means now.
func (db *DB) InitSession(sessionID, project string, startedAt int64) (*Session, error) {
	if startedAt <= 0 {
		startedAt = time.Now().UnixMilli()
	}

	existing, err := db.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		if existing.Status != "active" {
			if _, err := db.Exec(`
				UPDATE sessions SET status = 'active', ended_at = NULL WHERE session_id = ?
			`, sessionID); err != nil {
				return nil, fmt.Errorf("reactivate session: %w", err)
			}
			existing.Status = "active"
			existing.EndedAt = nil
		}
		return existing, nil
	}

	result, err := db.Exec(`
		INSERT INTO sessions (session_id, project, started_at, status)
		VALUES (?, ?, ?, 'active')
	`, sessionID, project, startedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, _ := result.LastInsertId()
	return &Session{
		ID:        id,
		SessionID: sessionID,
		Project:   project,
		StartedAt: startedAt,
		Status:    "active",
	}, nil
}

// GetSession returns a session by its session_id, or nil when unknown.
func (db *DB) GetSession(sessionID string) (*Session, error) {
	s, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// EndSession marks an active session completed. Ending a completed or
// unknown session is a no-op.
func (db *DB) EndSession(sessionID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE sessions SET status = 'completed', ended_at = COALESCE(ended_at, ?)
		WHERE session_id = ? AND status = 'active'
	`, now, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// GetRecentSessions returns the most recent sessions, ordered by started_at DESC.
func (db *DB) GetRecentSessions(limit int) ([]Session, error) {
	return db.querySessions(`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// GetActiveSessions returns every session that has not been ended.
func (db *DB) GetActiveSessions() ([]Session, error) {
	return db.querySessions(`SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'active' ORDER BY started_at`)
}

func (db *DB) querySessions(query string, args ...any) ([]Session, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
