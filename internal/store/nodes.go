package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"webtrail/internal/nav"
	"webtrail/internal/urlx"
)

const nodeColumns = `id, session_id, tab_id, url, title, favicon, parent_id,
	type, open_target, source, timestamp, first_visit, last_visit,
	visit_count, reload_count, spa_request_count, frame_id, parent_frame_id,
	is_closed, close_time, active_time, load_time, referrer`

// scanNode scans a row into a NavigationNode. The row must carry nodeColumns
// in order.
func scanNode(scanner interface{ Scan(dest ...any) error }) (nav.NavigationNode, error) {
	var n nav.NavigationNode
	var closeTime, activeTime, loadTime sql.NullInt64
	err := scanner.Scan(
		&n.ID, &n.SessionID, &n.TabID, &n.URL, &n.Title, &n.Favicon, &n.ParentID,
		&n.Type, &n.OpenTarget, &n.Source, &n.Timestamp, &n.FirstVisit, &n.LastVisit,
		&n.VisitCount, &n.ReloadCount, &n.SPARequestCount, &n.FrameID, &n.ParentFrameID,
		&n.IsClosed, &closeTime, &activeTime, &loadTime, &n.Referrer,
	)
	if err != nil {
		return n, err
	}
	if closeTime.Valid {
		v := closeTime.Int64
		n.CloseTime = &v
	}
	if activeTime.Valid {
		v := activeTime.Int64
		n.ActiveTime = &v
	}
	if loadTime.Valid {
		v := loadTime.Int64
		n.LoadTime = &v
	}
	return n, nil
}

// GetNode returns a node by id, or nil if not found.
func (s *Store) GetNode(id string) (*nav.NavigationNode, error) {
	row := s.conn.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading node %s: %w", id, err)
	}
	return &n, nil
}

// SaveNode persists a node and returns the id under which it is stored. An
// open node in the same session and tab with an equivalent URL whose last
// visit falls inside the coalesce window is treated as the same visit: its
// bookkeeping is bumped and its id returned instead of inserting a duplicate.
func (s *Store) SaveNode(n *nav.NavigationNode) (string, error) {
	if n == nil || n.ID == "" {
		return "", fmt.Errorf("saving node: missing id")
	}
	norm := urlx.Normalize(n.URL)
	cutoff := time.Now().UnixMilli() - s.coalesceWindow.Milliseconds()

	var existing string
	err := s.conn.QueryRow(`
		SELECT id FROM nodes
		WHERE session_id = ? AND tab_id = ? AND normalized_url = ?
		  AND is_closed = 0 AND last_visit >= ?
		ORDER BY last_visit DESC LIMIT 1
	`, n.SessionID, n.TabID, norm, cutoff).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("checking for equivalent node: %w", err)
	}
	if err == nil && existing != "" {
		if _, err := s.conn.Exec(`
			UPDATE nodes SET last_visit = ?, visit_count = visit_count + 1 WHERE id = ?
		`, n.LastVisit, existing); err != nil {
			return "", fmt.Errorf("merging node save: %w", err)
		}
		return existing, nil
	}

	_, err = s.conn.Exec(`
		INSERT INTO nodes (`+nodeColumns+`, normalized_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_visit = excluded.last_visit,
			visit_count = visit_count + 1
	`, n.ID, n.SessionID, n.TabID, n.URL, n.Title, n.Favicon, n.ParentID,
		n.Type, n.OpenTarget, n.Source, n.Timestamp, n.FirstVisit, n.LastVisit,
		n.VisitCount, n.ReloadCount, n.SPARequestCount, n.FrameID, n.ParentFrameID,
		n.IsClosed, n.CloseTime, n.ActiveTime, n.LoadTime, n.Referrer, norm)
	if err != nil {
		return "", fmt.Errorf("inserting node: %w", err)
	}
	return n.ID, nil
}

// UpdateNode applies a partial update. An unknown id is not an error; the
// update simply touches zero rows.
func (s *Store) UpdateNode(id string, patch nav.NodePatch) error {
	var sets []string
	var args []any

	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.URL != nil {
		set("url", *patch.URL)
		set("normalized_url", urlx.Normalize(*patch.URL))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Favicon != nil {
		set("favicon", *patch.Favicon)
	}
	if patch.ParentID != nil {
		set("parent_id", *patch.ParentID)
	}
	if patch.Referrer != nil {
		set("referrer", *patch.Referrer)
	}
	if patch.Source != nil {
		set("source", string(*patch.Source))
	}
	if patch.LoadTime != nil {
		set("load_time", *patch.LoadTime)
	}
	if patch.FirstVisit != nil {
		set("first_visit", *patch.FirstVisit)
	}
	if patch.LastVisit != nil {
		set("last_visit", *patch.LastVisit)
	}
	if patch.IsClosed != nil {
		set("is_closed", *patch.IsClosed)
	}
	if patch.CloseTime != nil {
		set("close_time", *patch.CloseTime)
	}
	if patch.ActiveTimeDelta != 0 {
		sets = append(sets, "active_time = COALESCE(active_time, 0) + ?")
		args = append(args, patch.ActiveTimeDelta)
	}
	if patch.VisitDelta != 0 {
		sets = append(sets, "visit_count = visit_count + ?")
		args = append(args, patch.VisitDelta)
	}
	if patch.ReloadDelta != 0 {
		sets = append(sets, "reload_count = reload_count + ?")
		args = append(args, patch.ReloadDelta)
	}
	if patch.SPADelta != 0 {
		sets = append(sets, "spa_request_count = spa_request_count + ?")
		args = append(args, patch.SPADelta)
	}

	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := s.conn.Exec(`UPDATE nodes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("updating node %s: %w", id, err)
	}
	return nil
}

// QueryNodes returns nodes matching the filter, ordered by timestamp.
func (s *Store) QueryNodes(filter nav.NodeFilter) ([]nav.NavigationNode, error) {
	var where []string
	var args []any
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.TabID != "" {
		where = append(where, "tab_id = ?")
		args = append(args, filter.TabID)
	}
	if filter.IsClosed != nil {
		where = append(where, "is_closed = ?")
		args = append(args, *filter.IsClosed)
	}

	query := `SELECT ` + nodeColumns + ` FROM nodes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []nav.NavigationNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
