package graph

import "sort"

// TrailNode is one node in a rendered causal tree.
type TrailNode struct {
	*NodeInfo
	Children []*TrailNode
}

// BuildTrails arranges a snapshot's nodes into causal trees following
// parent links. Self-referencing parents, parents pointing at unknown nodes,
// and parent cycles are all tolerated: such nodes are promoted to roots
// rather than treated as errors. Roots and children are ordered by
// timestamp.
func BuildTrails(snap *Snapshot) []*TrailNode {
	trailNodes := make(map[string]*TrailNode, len(snap.Nodes))
	for id, n := range snap.Nodes {
		trailNodes[id] = &TrailNode{NodeInfo: n}
	}

	var roots []*TrailNode
	for id, tn := range trailNodes {
		parentID := tn.ParentID
		if parentID == "" || parentID == id {
			roots = append(roots, tn)
			continue
		}
		parent, ok := trailNodes[parentID]
		if !ok || reachesSelf(id, snap.Nodes) {
			roots = append(roots, tn)
			continue
		}
		parent.Children = append(parent.Children, tn)
	}

	sortTrail(roots)
	for _, tn := range trailNodes {
		sortTrail(tn.Children)
	}
	return roots
}

// reachesSelf walks the parent chain from id and reports whether it loops
// back to id, so cycle members can be promoted to roots.
func reachesSelf(id string, nodes map[string]*NodeInfo) bool {
	seen := make(map[string]bool)
	current := id
	for {
		node, ok := nodes[current]
		if !ok || node.ParentID == "" {
			return false
		}
		current = node.ParentID
		if current == id {
			return true
		}
		if seen[current] {
			return false // a cycle, but not through id
		}
		seen[current] = true
	}
}

func sortTrail(nodes []*TrailNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Timestamp != nodes[j].Timestamp {
			return nodes[i].Timestamp < nodes[j].Timestamp
		}
		return nodes[i].ID < nodes[j].ID
	})
}
