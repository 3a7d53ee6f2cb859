package graph

import "testing"

func quickNode(id, parentID string, ts int64) *NodeInfo {
	return &NodeInfo{
		ID:        id,
		URL:       "https://" + id + ".test",
		SessionID: "s1",
		NavType:   "link_click",
		ParentID:  parentID,
		Timestamp: ts,
	}
}

func quickEdge(source, target string) EdgeInfo {
	return EdgeInfo{ID: "e-" + source + "-" + target, Source: source, Target: target, NavType: "link_click"}
}

func TestNewSnapshot_DropsDanglingEdges(t *testing.T) {
	snap := NewSnapshot(
		[]*NodeInfo{quickNode("a", "", 1), quickNode("b", "a", 2)},
		[]EdgeInfo{quickEdge("a", "b"), quickEdge("a", "ghost"), quickEdge("ghost", "b")},
	)

	if len(snap.Edges) != 1 {
		t.Errorf("kept %d edges, want 1", len(snap.Edges))
	}
	if got := snap.OutAdj["a"]; len(got) != 1 || got[0] != "b" {
		t.Errorf("OutAdj[a] = %v", got)
	}
	if got := snap.InAdj["b"]; len(got) != 1 || got[0] != "a" {
		t.Errorf("InAdj[b] = %v", got)
	}
}

func TestSnapshot_FilterToSession(t *testing.T) {
	other := quickNode("c", "", 3)
	other.SessionID = "s2"
	snap := NewSnapshot(
		[]*NodeInfo{quickNode("a", "", 1), quickNode("b", "a", 2), other},
		[]EdgeInfo{quickEdge("a", "b"), quickEdge("b", "c")},
	)

	got := snap.FilterToSession("s1")
	if len(got.Nodes) != 2 {
		t.Errorf("filtered nodes = %v", got.NodeIDs())
	}
	if len(got.Edges) != 1 {
		t.Errorf("cross-session edge survived: %+v", got.Edges)
	}
}

func TestComputeTopology(t *testing.T) {
	// Two trails plus an orphan: a->b->c, d->e, f.
	nodes := []*NodeInfo{
		quickNode("a", "", 1), quickNode("b", "a", 2), quickNode("c", "b", 3),
		quickNode("d", "", 4), quickNode("e", "d", 5),
		quickNode("f", "", 6),
	}
	nodes[5].IsClosed = true
	nodes[5].NavType = "address_bar"
	edges := []EdgeInfo{
		quickEdge("a", "b"), quickEdge("b", "c"), quickEdge("d", "e"),
	}

	report := ComputeTopology(NewSnapshot(nodes, edges), 1, 10)

	if report.TotalNodes != 6 || report.TotalEdges != 3 {
		t.Errorf("totals = %d nodes %d edges", report.TotalNodes, report.TotalEdges)
	}
	if report.NumComponents != 3 {
		t.Errorf("components = %d, want 3", report.NumComponents)
	}
	if report.LargestComponent != 3 || report.SmallestComponent != 1 {
		t.Errorf("component sizes = %d/%d, want 3/1", report.LargestComponent, report.SmallestComponent)
	}
	if report.OrphanCount != 1 || len(report.OrphanIDs) != 1 || report.OrphanIDs[0] != "f" {
		t.Errorf("orphans = %d %v", report.OrphanCount, report.OrphanIDs)
	}
	if report.OpenNodes != 5 {
		t.Errorf("open nodes = %d, want 5", report.OpenNodes)
	}
	if report.NavTypeCounts["link_click"] != 5 || report.NavTypeCounts["address_bar"] != 1 {
		t.Errorf("nav type counts = %v", report.NavTypeCounts)
	}

	// b has degree 2, everything else at most 2 via its own edges; threshold 1
	// should surface b as a hub.
	foundB := false
	for _, h := range report.Hubs {
		if h.ID == "b" {
			foundB = true
			if h.InDegree != 1 || h.OutDegree != 1 {
				t.Errorf("hub b degrees = in %d out %d", h.InDegree, h.OutDegree)
			}
		}
	}
	if !foundB {
		t.Errorf("b missing from hubs: %+v", report.Hubs)
	}
}

func TestComputeTopology_Empty(t *testing.T) {
	report := ComputeTopology(NewSnapshot(nil, nil), 2, 10)
	if report.TotalNodes != 0 || report.NumComponents != 0 {
		t.Errorf("empty report = %+v", report)
	}
}

func TestComputeTopology_TopDomains(t *testing.T) {
	nodes := []*NodeInfo{
		{ID: "a", URL: "https://docs.test/1", Timestamp: 1},
		{ID: "b", URL: "https://docs.test/2", Timestamp: 2},
		{ID: "c", URL: "https://other.test", Timestamp: 3},
	}
	report := ComputeTopology(NewSnapshot(nodes, nil), 2, 1)

	if len(report.TopDomains) != 1 {
		t.Fatalf("topN not applied: %+v", report.TopDomains)
	}
	if report.TopDomains[0].Domain != "docs.test" || report.TopDomains[0].Count != 2 {
		t.Errorf("top domain = %+v", report.TopDomains[0])
	}
}

func TestBuildTrails_Basic(t *testing.T) {
	snap := NewSnapshot([]*NodeInfo{
		quickNode("a", "", 1),
		quickNode("b", "a", 2),
		quickNode("c", "a", 3),
		quickNode("d", "", 4),
	}, nil)

	roots := BuildTrails(snap)
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	if roots[0].ID != "a" || roots[1].ID != "d" {
		t.Errorf("root order = %s, %s", roots[0].ID, roots[1].ID)
	}
	if len(roots[0].Children) != 2 {
		t.Fatalf("a's children = %d, want 2", len(roots[0].Children))
	}
	if roots[0].Children[0].ID != "b" || roots[0].Children[1].ID != "c" {
		t.Errorf("children order = %s, %s", roots[0].Children[0].ID, roots[0].Children[1].ID)
	}
}

func TestBuildTrails_ToleratesBrokenParents(t *testing.T) {
	selfRef := quickNode("s", "s", 1)
	missing := quickNode("m", "gone", 2)
	snap := NewSnapshot([]*NodeInfo{selfRef, missing}, nil)

	roots := BuildTrails(snap)
	if len(roots) != 2 {
		t.Errorf("broken parents should promote to roots, got %d", len(roots))
	}
}

func TestBuildTrails_ToleratesCycles(t *testing.T) {
	// x -> y -> x: both cycle members become roots instead of vanishing.
	snap := NewSnapshot([]*NodeInfo{
		quickNode("x", "y", 1),
		quickNode("y", "x", 2),
		quickNode("z", "y", 3),
	}, nil)

	roots := BuildTrails(snap)
	if len(roots) != 2 {
		t.Fatalf("cycle members should be roots, got %d: %v", len(roots), rootIDs(roots))
	}
	// z still hangs off y.
	var y *TrailNode
	for _, r := range roots {
		if r.ID == "y" {
			y = r
		}
	}
	if y == nil {
		t.Fatal("y not promoted to root")
	}
	if len(y.Children) != 1 || y.Children[0].ID != "z" {
		t.Errorf("y children = %v", y.Children)
	}
}

func rootIDs(roots []*TrailNode) []string {
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = r.ID
	}
	return out
}

func TestUnionFind_Components(t *testing.T) {
	uf := newUnionFind([]string{"a", "b", "c", "d"})
	uf.union("a", "b")
	uf.union("b", "c")

	comps := uf.components()
	if len(comps) != 2 {
		t.Fatalf("components = %d, want 2", len(comps))
	}
	sizes := map[int]int{}
	for _, c := range comps {
		sizes[len(c)]++
	}
	if sizes[3] != 1 || sizes[1] != 1 {
		t.Errorf("component sizes = %v", sizes)
	}
}
