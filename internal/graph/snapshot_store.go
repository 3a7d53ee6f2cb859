package graph

import (
	"webtrail/internal/nav"
	"webtrail/internal/store"
)

// SnapshotFromStore loads a Snapshot from the database. An empty sessionID
// loads the whole graph.
func SnapshotFromStore(st *store.Store, sessionID string) (*Snapshot, error) {
	dbNodes, err := st.QueryNodes(nav.NodeFilter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	var dbEdges []nav.NavigationEdge
	if sessionID == "" {
		dbEdges, err = st.AllEdges()
	} else {
		dbEdges, err = st.EdgesBySession(sessionID)
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]*NodeInfo, 0, len(dbNodes))
	for _, n := range dbNodes {
		nodes = append(nodes, &NodeInfo{
			ID:        n.ID,
			Title:     n.Title,
			URL:       n.URL,
			TabID:     n.TabID,
			SessionID: n.SessionID,
			NavType:   string(n.Type),
			ParentID:  n.ParentID,
			Timestamp: n.Timestamp,
			IsClosed:  n.IsClosed,
		})
	}

	edges := make([]EdgeInfo, 0, len(dbEdges))
	for _, e := range dbEdges {
		edges = append(edges, EdgeInfo{
			ID:        e.ID,
			Source:    e.SourceID,
			Target:    e.TargetID,
			NavType:   string(e.NavigationType),
			Timestamp: e.Timestamp,
		})
	}

	return NewSnapshot(nodes, edges), nil
}
