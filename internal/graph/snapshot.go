// Package graph provides read-side analysis over the persisted navigation
// graph: adjacency snapshots, connected components, topology reports, and
// per-session trail trees.
package graph

import "sort"

// NodeInfo is a lightweight page-visit representation decoupled from storage
// types.
type NodeInfo struct {
	ID        string
	Title     string
	URL       string
	TabID     string
	SessionID string
	NavType   string
	ParentID  string // empty = root
	Timestamp int64
	IsClosed  bool
}

// EdgeInfo is a lightweight transition representation.
type EdgeInfo struct {
	ID        string
	Source    string
	Target    string
	NavType   string
	Timestamp int64
}

// Snapshot holds a navigation graph with precomputed adjacency lists. Edges
// referencing unknown nodes are dropped at build time.
type Snapshot struct {
	Nodes  map[string]*NodeInfo
	Edges  []EdgeInfo
	Adj    map[string][]string // undirected
	OutAdj map[string][]string // directed: source -> targets
	InAdj  map[string][]string // directed: target -> sources
}

// NewSnapshot builds a Snapshot from raw nodes and edges.
func NewSnapshot(nodes []*NodeInfo, edges []EdgeInfo) *Snapshot {
	nodeMap := make(map[string]*NodeInfo, len(nodes))
	adj := make(map[string][]string)
	outAdj := make(map[string][]string)
	inAdj := make(map[string][]string)

	for _, n := range nodes {
		nodeMap[n.ID] = n
		adj[n.ID] = nil // ensure entry exists
		outAdj[n.ID] = nil
		inAdj[n.ID] = nil
	}

	var kept []EdgeInfo
	for _, e := range edges {
		if _, ok := nodeMap[e.Source]; !ok {
			continue
		}
		if _, ok := nodeMap[e.Target]; !ok {
			continue
		}
		kept = append(kept, e)
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
		inAdj[e.Target] = append(inAdj[e.Target], e.Source)
	}

	return &Snapshot{
		Nodes:  nodeMap,
		Edges:  kept,
		Adj:    adj,
		OutAdj: outAdj,
		InAdj:  inAdj,
	}
}

// FilterToSession returns a new snapshot containing only one session's nodes
// and the edges between them.
func (s *Snapshot) FilterToSession(sessionID string) *Snapshot {
	var nodes []*NodeInfo
	for _, n := range s.Nodes {
		if n.SessionID == sessionID {
			nodes = append(nodes, n)
		}
	}
	return NewSnapshot(nodes, s.Edges)
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output).
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
