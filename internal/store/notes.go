package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/cadence/internal/notes"
)

// AddNotes appends notes to a session's journal in arrival order.
// The session must already exist.
func (db *DB) AddNotes(sessionID string, ns ...notes.Note) error {
	if len(ns) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin add notes: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM notes WHERE session_id = ?`, sessionID).Scan(&seq); err != nil {
		return fmt.Errorf("next note seq: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, n := range ns {
		seq++
		issues, err := encodeJSON(n.Issues)
		if err != nil {
			return fmt.Errorf("encode issues: %w", err)
		}
		state, err := encodeJSON(n.State)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO notes (session_id, seq, timestamp, elapsed_ms, score, observation, step, issues, interaction, state, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, sessionID, seq, nullInt(n.Timestamp), n.Elapsed, n.Score, n.Observation, n.Step, issues, n.Interaction, state, now); err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
	}

	result, err := tx.Exec(`UPDATE sessions SET note_count = note_count + ? WHERE session_id = ?`, len(ns), sessionID)
	if err != nil {
		return fmt.Errorf("update note count: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("no session found for %s", sessionID)
	}
	return tx.Commit()
}

// GetNotes returns a session's notes in arrival order.
func (db *DB) GetNotes(sessionID string) ([]notes.Note, error) {
	rows, err := db.Query(`
		SELECT timestamp, elapsed_ms, score, COALESCE(observation, ''), COALESCE(step, ''), issues, interaction, state
		FROM notes WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get notes: %w", err)
	}
	defer rows.Close()

	var out []notes.Note
	for rows.Next() {
		var (
			n         notes.Note
			timestamp sql.NullInt64
			elapsed   sql.NullInt64
			score     sql.NullFloat64
			issues    sql.NullString
			state     sql.NullString
		)
		if err := rows.Scan(&timestamp, &elapsed, &score, &n.Observation, &n.Step, &issues, &n.Interaction, &state); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.Timestamp = timestamp.Int64
		if elapsed.Valid {
			n.Elapsed = &elapsed.Int64
		}
		if score.Valid {
			n.Score = &score.Float64
		}
		if issues.Valid {
			if err := json.Unmarshal([]byte(issues.String), &n.Issues); err != nil {
				return nil, fmt.Errorf("decode issues: %w", err)
			}
		}
		if state.Valid {
			if err := json.Unmarshal([]byte(state.String), &n.State); err != nil {
				return nil, fmt.Errorf("decode state: %w", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountNotes returns the number of journaled notes for a session.
func (db *DB) CountNotes(sessionID string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM notes WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}

// encodeJSON returns nil for empty values so they are stored as NULL.
func encodeJSON[T ~[]string | ~map[string]any](v T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
