package graph

import (
	"sort"
	"time"

	"webtrail/internal/nav"
)

// TabActivity summarizes one tab's recorded visits.
type TabActivity struct {
	TabID      string `json:"tab_id"`
	Visits     int    `json:"visits"`
	ActiveTime int64  `json:"active_time_ms"`
}

// StaleVisit is an open page visit that has not been seen for a while.
type StaleVisit struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	LastVisit int64  `json:"last_visit"`
	IdleMs    int64  `json:"idle_ms"`
}

// ActivityReport summarizes browsing activity over a set of visits: dwell
// time, reload and SPA churn, and open pages gone stale.
type ActivityReport struct {
	Nodes           int           `json:"nodes"`
	OpenNodes       int           `json:"open_nodes"`
	ClosedNodes     int           `json:"closed_nodes"`
	TotalActiveMs   int64         `json:"total_active_ms"`
	TotalReloads    int           `json:"total_reloads"`
	TotalSPAChanges int           `json:"total_spa_changes"`
	SpanMs          int64         `json:"span_ms"` // first to last visit
	BusiestTabs     []TabActivity `json:"busiest_tabs"`
	StaleOpen       []StaleVisit  `json:"stale_open"`
}

// ComputeActivity builds an ActivityReport. Open visits whose last visit is
// older than staleAfter relative to now are reported as stale.
func ComputeActivity(nodes []nav.NavigationNode, now int64, staleAfter time.Duration, topN int) *ActivityReport {
	report := &ActivityReport{Nodes: len(nodes)}
	if len(nodes) == 0 {
		return report
	}

	first, last := nodes[0].Timestamp, nodes[0].LastVisit
	byTab := make(map[string]*TabActivity)
	staleCutoff := now - staleAfter.Milliseconds()

	for _, n := range nodes {
		if n.IsClosed {
			report.ClosedNodes++
		} else {
			report.OpenNodes++
			if n.LastVisit < staleCutoff {
				report.StaleOpen = append(report.StaleOpen, StaleVisit{
					ID:        n.ID,
					Title:     n.Title,
					URL:       n.URL,
					LastVisit: n.LastVisit,
					IdleMs:    now - n.LastVisit,
				})
			}
		}
		if n.ActiveTime != nil {
			report.TotalActiveMs += *n.ActiveTime
		}
		report.TotalReloads += n.ReloadCount
		report.TotalSPAChanges += n.SPARequestCount
		if n.Timestamp < first {
			first = n.Timestamp
		}
		if n.LastVisit > last {
			last = n.LastVisit
		}

		ta, ok := byTab[n.TabID]
		if !ok {
			ta = &TabActivity{TabID: n.TabID}
			byTab[n.TabID] = ta
		}
		ta.Visits++
		if n.ActiveTime != nil {
			ta.ActiveTime += *n.ActiveTime
		}
	}
	report.SpanMs = last - first

	tabs := make([]TabActivity, 0, len(byTab))
	for _, ta := range byTab {
		tabs = append(tabs, *ta)
	}
	sort.Slice(tabs, func(i, j int) bool {
		if tabs[i].ActiveTime != tabs[j].ActiveTime {
			return tabs[i].ActiveTime > tabs[j].ActiveTime
		}
		if tabs[i].Visits != tabs[j].Visits {
			return tabs[i].Visits > tabs[j].Visits
		}
		return tabs[i].TabID < tabs[j].TabID
	})
	if len(tabs) > topN {
		tabs = tabs[:topN]
	}
	report.BusiestTabs = tabs

	sort.Slice(report.StaleOpen, func(i, j int) bool {
		return report.StaleOpen[i].IdleMs > report.StaleOpen[j].IdleMs
	})
	if len(report.StaleOpen) > topN {
		report.StaleOpen = report.StaleOpen[:topN]
	}
	return report
}
