package store

import (
	"fmt"

	"webtrail/internal/nav"
)

const edgeColumns = `id, source_id, target_id, type, timestamp, session_id`

// scanEdge scans a row into a NavigationEdge. The row must carry edgeColumns
// in order.
func scanEdge(scanner interface{ Scan(dest ...any) error }) (nav.NavigationEdge, error) {
	var e nav.NavigationEdge
	err := scanner.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.NavigationType, &e.Timestamp, &e.SessionID)
	return e, err
}

// SaveEdge persists a causal transition.
func (s *Store) SaveEdge(e *nav.NavigationEdge) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("saving edge: missing id")
	}
	_, err := s.conn.Exec(`
		INSERT INTO edges (`+edgeColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.SourceID, e.TargetID, e.NavigationType, e.Timestamp, e.SessionID)
	if err != nil {
		return fmt.Errorf("inserting edge: %w", err)
	}
	return nil
}

// AllEdges returns every edge ordered by timestamp.
func (s *Store) AllEdges() ([]nav.NavigationEdge, error) {
	return s.queryEdges(`SELECT ` + edgeColumns + ` FROM edges ORDER BY timestamp`)
}

// EdgesBySession returns a session's edges ordered by timestamp.
func (s *Store) EdgesBySession(sessionID string) ([]nav.NavigationEdge, error) {
	return s.queryEdges(`SELECT `+edgeColumns+` FROM edges WHERE session_id = ? ORDER BY timestamp`, sessionID)
}

func (s *Store) queryEdges(query string, args ...any) ([]nav.NavigationEdge, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []nav.NavigationEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
