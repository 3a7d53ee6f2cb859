package graph

import (
	"testing"
	"time"

	"webtrail/internal/nav"
)

func activityNode(id, tabID string, ts int64, active *int64, closed bool) nav.NavigationNode {
	return nav.NavigationNode{
		ID:         id,
		TabID:      tabID,
		URL:        "https://" + id + ".test",
		Timestamp:  ts,
		FirstVisit: ts,
		LastVisit:  ts,
		ActiveTime: active,
		IsClosed:   closed,
	}
}

func ms(v int64) *int64 { return &v }

func TestComputeActivity(t *testing.T) {
	now := int64(10_000_000)
	nodes := []nav.NavigationNode{
		activityNode("a", "t1", now-7_200_000, ms(5_000), false), // stale: 2h idle
		activityNode("b", "t1", now-60_000, ms(2_000), false),
		activityNode("c", "t2", now-30_000, ms(9_000), true),
	}
	nodes[1].ReloadCount = 2
	nodes[2].SPARequestCount = 3

	report := ComputeActivity(nodes, now, time.Hour, 10)

	if report.Nodes != 3 || report.OpenNodes != 2 || report.ClosedNodes != 1 {
		t.Errorf("counts = %d/%d open/%d closed", report.Nodes, report.OpenNodes, report.ClosedNodes)
	}
	if report.TotalActiveMs != 16_000 {
		t.Errorf("total active = %d, want 16000", report.TotalActiveMs)
	}
	if report.TotalReloads != 2 || report.TotalSPAChanges != 3 {
		t.Errorf("churn = %d reloads %d spa", report.TotalReloads, report.TotalSPAChanges)
	}
	if report.SpanMs != 7_200_000-30_000 {
		t.Errorf("span = %d", report.SpanMs)
	}

	if len(report.StaleOpen) != 1 || report.StaleOpen[0].ID != "a" {
		t.Errorf("stale = %+v, want just a", report.StaleOpen)
	}

	if len(report.BusiestTabs) != 2 {
		t.Fatalf("busiest tabs = %+v", report.BusiestTabs)
	}
	// t2 accumulated more active time than t1's two visits combined.
	if report.BusiestTabs[0].TabID != "t2" || report.BusiestTabs[0].ActiveTime != 9_000 {
		t.Errorf("busiest = %+v", report.BusiestTabs[0])
	}
	if report.BusiestTabs[1].Visits != 2 || report.BusiestTabs[1].ActiveTime != 7_000 {
		t.Errorf("t1 activity = %+v", report.BusiestTabs[1])
	}
}

func TestComputeActivity_Empty(t *testing.T) {
	report := ComputeActivity(nil, 1_000, time.Hour, 5)
	if report.Nodes != 0 || report.SpanMs != 0 {
		t.Errorf("empty report = %+v", report)
	}
}
