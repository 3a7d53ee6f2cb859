package ids

import (
	"strings"
	"testing"
	"time"
)

func TestNodeID_StableWithinWindow(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	a := nodeIDAt("tab-1", "https://example.com/a", at)
	b := nodeIDAt("tab-1", "https://Example.com/a/", at.Add(time.Second))
	if a != b {
		t.Errorf("same tab+URL in one window should share an id: %q vs %q", a, b)
	}
}

func TestNodeID_DiffersAcrossInputs(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	base := nodeIDAt("tab-1", "https://example.com/a", at)
	if got := nodeIDAt("tab-2", "https://example.com/a", at); got == base {
		t.Error("different tabs should not share an id")
	}
	if got := nodeIDAt("tab-1", "https://example.com/b", at); got == base {
		t.Error("different URLs should not share an id")
	}
	if got := nodeIDAt("tab-1", "https://example.com/a", at.Add(time.Minute)); got == base {
		t.Error("different windows should not share an id")
	}
}

func TestEdgeAndSessionIDs(t *testing.T) {
	if !strings.HasPrefix(EdgeID(), "e-") {
		t.Error("edge id missing prefix")
	}
	if !strings.HasPrefix(SessionID(), "s-") {
		t.Error("session id missing prefix")
	}
	if EdgeID() == EdgeID() {
		t.Error("edge ids should be unique")
	}
}
