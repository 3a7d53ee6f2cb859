package nav

import "testing"

func TestTracker_AddOrUpdateState_Merges(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.AddOrUpdateState("t1", TabStatePatch{URL: "https://a.test", Created: 100})
	tr.AddOrUpdateState("t1", TabStatePatch{Title: "A"})

	s := tr.GetState("t1")
	if s == nil {
		t.Fatal("state missing after writes")
	}
	if s.URL != "https://a.test" {
		t.Errorf("URL lost in merge: %q", s.URL)
	}
	if s.Title != "A" {
		t.Errorf("title not merged: %q", s.Title)
	}
	if s.Created != 100 {
		t.Errorf("created not kept: %d", s.Created)
	}
}

func TestTracker_GetState_Unknown(t *testing.T) {
	tr := NewTracker(10, nil)
	if s := tr.GetState("nope"); s != nil {
		t.Errorf("unknown tab should return nil, got %+v", s)
	}
}

func TestTracker_AppendHistory_Idempotent(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.AppendHistory("t1", "n1")
	tr.AppendHistory("t1", "n1")

	if got := len(tr.GetHistory("t1")); got != 1 {
		t.Errorf("duplicate append should be a no-op, history length = %d", got)
	}
}

func TestTracker_AppendHistory_Cap(t *testing.T) {
	tr := NewTracker(3, nil)
	for _, id := range []string{"n1", "n2", "n3", "n4"} {
		tr.AppendHistory("t1", id)
	}
	h := tr.GetHistory("t1")
	if len(h) != 3 {
		t.Fatalf("history length = %d, want 3", len(h))
	}
	if h[0] != "n2" || h[2] != "n4" {
		t.Errorf("oldest should be evicted first, got %v", h)
	}
}

func TestTracker_GetLastNodeID_Fallback(t *testing.T) {
	tr := NewTracker(10, nil)
	if got := tr.GetLastNodeID("t1"); got != "" {
		t.Errorf("empty tab should yield empty id, got %q", got)
	}

	tr.AddOrUpdateState("t1", TabStatePatch{LastNodeID: "n-state"})
	if got := tr.GetLastNodeID("t1"); got != "n-state" {
		t.Errorf("empty history should fall back to state, got %q", got)
	}

	tr.AppendHistory("t1", "n-hist")
	if got := tr.GetLastNodeID("t1"); got != "n-hist" {
		t.Errorf("history should win over state, got %q", got)
	}
}

func TestTracker_ReplaceHistory(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.AppendHistory("t1", "n-local")
	tr.AddOrUpdateState("t1", TabStatePatch{LastNodeID: "n-local"})

	tr.ReplaceHistory("t1", "n-local", "n-canonical")

	h := tr.GetHistory("t1")
	if len(h) != 1 || h[0] != "n-canonical" {
		t.Errorf("history = %v, want [n-canonical]", h)
	}
	if got := tr.GetState("t1").LastNodeID; got != "n-canonical" {
		t.Errorf("state last node = %q, want n-canonical", got)
	}
}

func TestTracker_ReplaceHistory_DropsWhenPresent(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.AppendHistory("t1", "n-canonical")
	tr.AppendHistory("t1", "n-local")

	tr.ReplaceHistory("t1", "n-local", "n-canonical")

	h := tr.GetHistory("t1")
	if len(h) != 1 || h[0] != "n-canonical" {
		t.Errorf("stale entry should be dropped, got %v", h)
	}
}

func TestTracker_MarkRemoved(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.AddOrUpdateState("t1", TabStatePatch{URL: "https://a.test"})
	tr.AppendHistory("t1", "n1")
	tr.SetActiveTime("t1", 100)

	tr.MarkRemoved("t1")
	tr.MarkRemoved("t1") // idempotent

	if !tr.IsRemoved("t1") {
		t.Error("IsRemoved = false after MarkRemoved")
	}
	if got := tr.GetHistory("t1"); len(got) != 0 {
		t.Errorf("history should be empty after removal, got %v", got)
	}
	if s := tr.GetState("t1"); s != nil {
		t.Errorf("state should be gone after removal, got %+v", s)
	}
	if got := tr.GetElapsedActiveTime("t1", 200); got != 0 {
		t.Errorf("active time should be cleared, got %d", got)
	}
}

func TestTracker_ActiveTime(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.SetActiveTime("t1", 1_000)
	if got := tr.GetElapsedActiveTime("t1", 4_500); got != 3_500 {
		t.Errorf("elapsed = %d, want 3500", got)
	}
	if got := tr.GetElapsedActiveTime("t2", 4_500); got != 0 {
		t.Errorf("unknown tab elapsed = %d, want 0", got)
	}
}

func TestTracker_Listeners(t *testing.T) {
	tr := NewTracker(10, nil)
	var events []TabEvent
	tr.AddListener(func(ev TabEvent) { events = append(events, ev) })
	tr.AddListener(func(ev TabEvent) { panic("listener went bad") }) // must not propagate

	tr.AddOrUpdateState("t1", TabStatePatch{URL: "https://a.test"})
	tr.AppendHistory("t1", "n1")
	tr.MarkRemoved("t1")

	kinds := make([]TabEventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	want := []TabEventKind{TabEventStateChanged, TabEventHistoryUpdated, TabEventRemoved}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events %v, want %v", len(kinds), kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
	if events[1].NodeID != "n1" {
		t.Errorf("history event node = %q, want n1", events[1].NodeID)
	}
}
