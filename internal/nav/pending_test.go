package nav

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock pins a Matcher to a controllable time.
type fakeClock struct {
	ms int64
}

func (c *fakeClock) Now() int64              { return c.ms }
func (c *fakeClock) Advance(d time.Duration) { c.ms += d.Milliseconds() }

func newTestMatcher() (*Matcher, *fakeClock) {
	clk := &fakeClock{ms: 1_000_000}
	m := NewMatcher(10*time.Second, 10, nil)
	m.now = clk.Now
	return m, clk
}

func TestMatcher_ConsumeMatch_AtMostOnce(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddIntent(NavLinkClick, Intent{
		SourceNodeID: "n1",
		SourceTabID:  "t1",
		TargetURL:    "https://b.test/page",
	})

	first := m.ConsumeMatch("https://b.test/page", "t1")
	if first == nil || first.SourceNodeID != "n1" {
		t.Fatalf("first consume = %+v, want intent from n1", first)
	}
	if second := m.ConsumeMatch("https://b.test/page", "t1"); second != nil {
		t.Errorf("intent consumed twice: %+v", second)
	}
}

func TestMatcher_ConsumeMatch_NormalizedKey(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddIntent(NavLinkClick, Intent{
		SourceTabID: "t1",
		TargetURL:   "HTTPS://B.Test:443/page/?utm_source=x",
	})

	if got := m.ConsumeMatch("https://b.test/page", "t1"); got == nil {
		t.Error("normalized URL forms should match the same intent")
	}
}

func TestMatcher_ConsumeMatch_PrefersOwningTab(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddIntent(NavLinkClick, Intent{SourceNodeID: "n-other", SourceTabID: "t9", TargetURL: "https://b.test"})
	m.AddIntent(NavLinkClick, Intent{SourceNodeID: "n-mine", SourceTabID: "t1", TargetURL: "https://b.test"})

	got := m.ConsumeMatch("https://b.test", "t1")
	if got == nil || got.SourceNodeID != "n-mine" {
		t.Errorf("consume for t1 = %+v, want the t1-bound intent", got)
	}
}

func TestMatcher_ConsumeMatch_NewTabIntent(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddIntent(NavLinkClick, Intent{SourceNodeID: "n-plain", SourceTabID: "t1", TargetURL: "https://b.test"})
	m.AddIntent(NavLinkClick, Intent{SourceNodeID: "n-newtab", SourceTabID: "t1", TargetURL: "https://b.test", IsNewTab: true})

	// The committing tab id is fresh, so only the new-tab intent should win.
	got := m.ConsumeMatch("https://b.test", "t-fresh")
	if got == nil || got.SourceNodeID != "n-newtab" {
		t.Errorf("consume = %+v, want the new-tab intent", got)
	}
}

func TestMatcher_ConsumeMatch_Expiry(t *testing.T) {
	m, clk := newTestMatcher()
	m.AddIntent(NavLinkClick, Intent{SourceTabID: "t1", TargetURL: "https://b.test"})

	clk.Advance(11 * time.Second)
	if got := m.ConsumeMatch("https://b.test", "t1"); got != nil {
		t.Errorf("expired intent should not match, got %+v", got)
	}
}

func TestMatcher_FormSubmit_TabFallback(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddIntent(NavFormSubmit, Intent{
		SourceNodeID: "n1",
		SourceTabID:  "t1",
		TargetURL:    "https://b.test/search",
	})

	// The server redirected the POST somewhere the intent never named.
	got := m.ConsumeMatch("https://b.test/results?q=go", "t1")
	if got == nil || got.Type != NavFormSubmit {
		t.Fatalf("consume = %+v, want the form intent via tab fallback", got)
	}
	if again := m.ConsumeMatch("https://b.test/other", "t1"); again != nil {
		t.Errorf("form intent consumed twice: %+v", again)
	}
}

func TestMatcher_FormSubmit_WrongTab(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddIntent(NavFormSubmit, Intent{SourceTabID: "t1", TargetURL: "https://b.test/search"})

	if got := m.ConsumeMatch("https://b.test/results", "t2"); got != nil {
		t.Errorf("form intent leaked across tabs: %+v", got)
	}
}

func TestMatcher_ScriptRing_Cap(t *testing.T) {
	m, _ := newTestMatcher()
	for i := 0; i < 15; i++ {
		m.AddScriptNavigation("t1", ScriptNavigationRecord{
			From: "https://a.test",
			To:   fmt.Sprintf("https://b.test/%d", i),
		})
	}

	if _, _, ok := m.FindScriptMatch("t1", "https://b.test/4"); ok {
		t.Error("oldest record should have been evicted at capacity")
	}
	if _, _, ok := m.FindScriptMatch("t1", "https://b.test/14"); !ok {
		t.Error("newest record missing from ring")
	}
}

func TestMatcher_ScriptMatch_MostRecentFirst(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddScriptNavigation("t1", ScriptNavigationRecord{From: "https://old.test", To: "https://b.test"})
	m.AddScriptNavigation("t1", ScriptNavigationRecord{From: "https://new.test", To: "https://b.test"})

	rec, idx, ok := m.FindScriptMatch("t1", "https://b.test")
	if !ok {
		t.Fatal("no match found")
	}
	if rec.From != "https://new.test" {
		t.Errorf("matched From = %q, want the most recent record", rec.From)
	}

	// Lookup is non-consuming until explicitly removed.
	if _, _, ok := m.FindScriptMatch("t1", "https://b.test"); !ok {
		t.Error("FindScriptMatch should not consume the record")
	}
	m.RemoveScriptNavigation("t1", idx)
	rec, _, ok = m.FindScriptMatch("t1", "https://b.test")
	if !ok || rec.From != "https://old.test" {
		t.Errorf("after removal got %+v ok=%v, want the older record", rec, ok)
	}
}

func TestMatcher_SweepExpired(t *testing.T) {
	m, clk := newTestMatcher()
	m.AddIntent(NavLinkClick, Intent{SourceTabID: "t1", TargetURL: "https://b.test"})
	m.AddIntent(NavFormSubmit, Intent{SourceTabID: "t1", TargetURL: "https://c.test"})
	clk.Advance(5 * time.Second)
	m.AddIntent(NavLinkClick, Intent{SourceTabID: "t1", TargetURL: "https://d.test"})

	clk.Advance(6 * time.Second)
	if got := m.SweepExpired(); got != 2 {
		t.Errorf("swept %d intents, want 2", got)
	}
	if got := m.ConsumeMatch("https://d.test", "t1"); got == nil {
		t.Error("the younger intent should have survived the sweep")
	}
}

func TestMatcher_ClearForTab(t *testing.T) {
	m, _ := newTestMatcher()
	m.AddIntent(NavLinkClick, Intent{SourceTabID: "t1", TargetURL: "https://b.test"})
	m.AddIntent(NavLinkClick, Intent{SourceTabID: "t2", TargetURL: "https://b.test"})
	m.AddIntent(NavFormSubmit, Intent{SourceTabID: "t1", TargetURL: "https://c.test"})
	m.AddScriptNavigation("t1", ScriptNavigationRecord{To: "https://d.test"})

	m.ClearForTab("t1")

	got := m.ConsumeMatch("https://b.test", "t2")
	if got == nil || got.SourceTabID != "t2" {
		t.Errorf("t2 intent should survive, got %+v", got)
	}
	if got := m.ConsumeMatch("https://c.test", "t1"); got != nil {
		t.Errorf("t1 form intent should be gone, got %+v", got)
	}
	if _, _, ok := m.FindScriptMatch("t1", "https://d.test"); ok {
		t.Error("t1 script ring should be gone")
	}
}
