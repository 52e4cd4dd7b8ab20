package store

import (
	"fmt"
	"time"
)

// DecisionRecord is one journaled prompt decision.
type DecisionRecord struct {
	ID           int64
	SessionID    string
	ShouldPrompt bool
	Urgency      string
	Reason       string
	Stage        string
	NoteCount    int
	CreatedAt    int64
}

// RecordDecision journals a decision and bumps the session's decision count.
func (db *DB) RecordDecision(rec DecisionRecord) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin record decision: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO decisions (session_id, should_prompt, urgency, reason, stage, note_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.ShouldPrompt, rec.Urgency, rec.Reason, rec.Stage, rec.NoteCount, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE sessions SET decision_count = decision_count + 1 WHERE session_id = ?
	`, rec.SessionID); err != nil {
		return fmt.Errorf("update decision count: %w", err)
	}
	return tx.Commit()
}

// GetDecisions returns a session's most recent decisions, newest first.
func (db *DB) GetDecisions(sessionID string, limit int) ([]DecisionRecord, error) {
	rows, err := db.Query(`
		SELECT id, session_id, should_prompt, urgency, reason, COALESCE(stage, ''), note_count, created_at
		FROM decisions WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var d DecisionRecord
		if err := rows.Scan(&d.ID, &d.SessionID, &d.ShouldPrompt, &d.Urgency, &d.Reason, &d.Stage, &d.NoteCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
