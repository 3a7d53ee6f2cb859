package graph

import (
	"net/url"
	"sort"
	"strings"
)

// HubPage is a page visit with high connectivity: a branching point in the
// browsing trail.
type HubPage struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// DomainCount pairs a hostname with how many visits landed on it.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// TopologyReport contains topology analysis results over a navigation graph.
type TopologyReport struct {
	TotalNodes        int            `json:"total_nodes"`
	TotalEdges        int            `json:"total_edges"`
	OpenNodes         int            `json:"open_nodes"`
	NumComponents     int            `json:"num_components"`
	LargestComponent  int            `json:"largest_component"`
	SmallestComponent int            `json:"smallest_component"`
	OrphanCount       int            `json:"orphan_count"`
	OrphanIDs         []string       `json:"orphan_ids"`
	NavTypeCounts     map[string]int `json:"nav_type_counts"`
	TopDomains        []DomainCount  `json:"top_domains"`
	Hubs              []HubPage      `json:"hubs"`
}

// ComputeTopology analyzes a navigation graph: connected trails, orphan
// visits, navigation-type distribution, domains, and hub pages.
func ComputeTopology(snap *Snapshot, hubThreshold, topN int) *TopologyReport {
	totalNodes := len(snap.Nodes)
	report := &TopologyReport{
		TotalNodes:    totalNodes,
		TotalEdges:    len(snap.Edges),
		NavTypeCounts: make(map[string]int),
	}
	if totalNodes == 0 {
		return report
	}

	// Connected components: each one is an independent browsing trail.
	nodeIDs := snap.NodeIDs()
	uf := newUnionFind(nodeIDs)
	for _, e := range snap.Edges {
		uf.union(e.Source, e.Target)
	}
	comps := uf.components()
	report.NumComponents = len(comps)
	largest, smallest := 0, totalNodes
	for _, c := range comps {
		if len(c) > largest {
			largest = len(c)
		}
		if len(c) < smallest {
			smallest = len(c)
		}
	}
	report.LargestComponent = largest
	report.SmallestComponent = smallest

	// Orphans: visits with no recorded cause or consequence.
	var orphans []string
	for _, id := range nodeIDs {
		if len(snap.Adj[id]) == 0 {
			orphans = append(orphans, id)
		}
	}
	report.OrphanCount = len(orphans)
	sort.Strings(orphans)
	if len(orphans) > topN {
		orphans = orphans[:topN]
	}
	report.OrphanIDs = orphans

	domains := make(map[string]int)
	for _, id := range nodeIDs {
		n := snap.Nodes[id]
		report.NavTypeCounts[n.NavType]++
		if !n.IsClosed {
			report.OpenNodes++
		}
		if d := domainOf(n.URL); d != "" {
			domains[d]++
		}
	}
	report.TopDomains = topDomains(domains, topN)

	// Hubs: pages the user kept branching from or returning to.
	var hubs []HubPage
	for _, id := range nodeIDs {
		degree := len(snap.Adj[id])
		if degree > hubThreshold {
			n := snap.Nodes[id]
			hubs = append(hubs, HubPage{
				ID:        id,
				Title:     n.Title,
				URL:       n.URL,
				Degree:    degree,
				InDegree:  len(snap.InAdj[id]),
				OutDegree: len(snap.OutAdj[id]),
			})
		}
	}
	sort.Slice(hubs, func(i, j int) bool { return hubs[i].Degree > hubs[j].Degree })
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}
	report.Hubs = hubs

	return report
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func topDomains(counts map[string]int, topN int) []DomainCount {
	out := make([]DomainCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, DomainCount{Domain: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
