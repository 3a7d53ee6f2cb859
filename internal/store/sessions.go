package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is one recorded browsing session.
type Session struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	StartedAt int64  `json:"started_at"`
	EndedAt   *int64 `json:"ended_at,omitempty"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// CreateSession records the start of a session.
func (s *Store) CreateSession(id, label string) error {
	_, err := s.conn.Exec(`
		INSERT INTO sessions (id, label, started_at) VALUES (?, ?, ?)
	`, id, label, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// EndSession stamps the session's end time. Already-ended sessions keep their
// original stamp.
func (s *Store) EndSession(id string) error {
	_, err := s.conn.Exec(`
		UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL
	`, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// GetSession returns a session with its node and edge counts, or nil if
// unknown.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.conn.QueryRow(`
		SELECT s.id, s.label, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM nodes WHERE session_id = s.id),
		       (SELECT COUNT(*) FROM edges WHERE session_id = s.id)
		FROM sessions s WHERE s.id = ?
	`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return &sess, nil
}

// ListSessions returns all sessions, most recent first, with counts.
func (s *Store) ListSessions() ([]Session, error) {
	rows, err := s.conn.Query(`
		SELECT s.id, s.label, s.started_at, s.ended_at,
		       (SELECT COUNT(*) FROM nodes WHERE session_id = s.id),
		       (SELECT COUNT(*) FROM edges WHERE session_id = s.id)
		FROM sessions s ORDER BY s.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (Session, error) {
	var sess Session
	var ended sql.NullInt64
	err := scanner.Scan(&sess.ID, &sess.Label, &sess.StartedAt, &ended, &sess.NodeCount, &sess.EdgeCount)
	if err != nil {
		return sess, err
	}
	if ended.Valid {
		v := ended.Int64
		sess.EndedAt = &v
	}
	return sess, nil
}

// CloseSessionNodes marks every open node of a session closed and returns
// how many were affected.
func (s *Store) CloseSessionNodes(sessionID string) (int, error) {
	res, err := s.conn.Exec(`
		UPDATE nodes SET is_closed = 1, close_time = ?
		WHERE session_id = ? AND is_closed = 0
	`, time.Now().UnixMilli(), sessionID)
	if err != nil {
		return 0, fmt.Errorf("closing session nodes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
