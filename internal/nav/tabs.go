package nav

import (
	"sync"

	"go.uber.org/zap"
)

// TabEventKind identifies what changed in the tracker.
type TabEventKind string

const (
	TabEventStateChanged   TabEventKind = "state_changed"
	TabEventHistoryUpdated TabEventKind = "history_updated"
	TabEventRemoved        TabEventKind = "removed"
)

// TabEvent is delivered to tracker listeners after every mutation.
type TabEvent struct {
	Kind   TabEventKind
	TabID  string
	NodeID string // set for history_updated
}

// TabStatePatch is a partial tab state update. Empty strings and zero
// timestamps leave the existing value untouched.
type TabStatePatch struct {
	URL            string
	Title          string
	Favicon        string
	Created        int64
	Activated      int64
	LastNavigation int64
	LastNodeID     string
}

// Tracker owns per-tab state and per-tab navigation history. Absence is not
// exceptional: lookups on unknown tabs return zero values.
type Tracker struct {
	mu          sync.Mutex
	states      map[string]*TabState
	history     map[string][]string
	activeSince map[string]int64
	removed     map[string]bool
	listeners   []func(TabEvent)
	historyCap  int
	logger      *zap.Logger
}

// NewTracker creates a Tracker with the given history cap per tab.
func NewTracker(historyCap int, logger *zap.Logger) *Tracker {
	if historyCap <= 0 {
		historyCap = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		states:      make(map[string]*TabState),
		history:     make(map[string][]string),
		activeSince: make(map[string]int64),
		removed:     make(map[string]bool),
		historyCap:  historyCap,
		logger:      logger,
	}
}

// AddListener registers a listener for tracker events. Listener panics are
// caught and logged, never propagated.
func (t *Tracker) AddListener(fn func(TabEvent)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

func (t *Tracker) notify(ev TabEvent) {
	t.mu.Lock()
	listeners := make([]func(TabEvent), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Warn("tab listener panicked",
						zap.String("tab", ev.TabID),
						zap.Any("panic", r))
				}
			}()
			fn(ev)
		}()
	}
}

// AddOrUpdateState creates the tab's state on first sight and merges the
// patch into it on every subsequent call.
func (t *Tracker) AddOrUpdateState(tabID string, patch TabStatePatch) {
	t.mu.Lock()
	s, ok := t.states[tabID]
	if !ok {
		s = &TabState{ID: tabID}
		t.states[tabID] = s
		delete(t.removed, tabID)
	}
	if patch.URL != "" {
		s.URL = patch.URL
	}
	if patch.Title != "" {
		s.Title = patch.Title
	}
	if patch.Favicon != "" {
		s.Favicon = patch.Favicon
	}
	if patch.Created != 0 {
		s.Created = patch.Created
	}
	if patch.Activated != 0 {
		s.Activated = patch.Activated
	}
	if patch.LastNavigation != 0 {
		s.LastNavigation = patch.LastNavigation
	}
	if patch.LastNodeID != "" {
		s.LastNodeID = patch.LastNodeID
	}
	t.mu.Unlock()

	t.notify(TabEvent{Kind: TabEventStateChanged, TabID: tabID})
}

// GetState returns a copy of the tab's state, or nil if the tab is unknown.
func (t *Tracker) GetState(tabID string) *TabState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[tabID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// GetAllStates returns copies of every tracked tab state.
func (t *Tracker) GetAllStates() []TabState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TabState, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, *s)
	}
	return out
}

// AppendHistory records a node id in the tab's visit order. Duplicate
// signals for a node already in the capped history are a no-op.
func (t *Tracker) AppendHistory(tabID, nodeID string) {
	if nodeID == "" {
		return
	}
	t.mu.Lock()
	h := t.history[tabID]
	for _, id := range h {
		if id == nodeID {
			t.mu.Unlock()
			return
		}
	}
	h = append(h, nodeID)
	if len(h) > t.historyCap {
		h = h[len(h)-t.historyCap:]
	}
	t.history[tabID] = h
	t.mu.Unlock()

	t.notify(TabEvent{Kind: TabEventHistoryUpdated, TabID: tabID, NodeID: nodeID})
}

// ReplaceHistory swaps oldID for newID in the tab's history. Used when
// storage coalesces a save and returns a different canonical id. If newID is
// already present the stale entry is dropped instead.
func (t *Tracker) ReplaceHistory(tabID, oldID, newID string) {
	if oldID == "" || newID == "" || oldID == newID {
		return
	}
	t.mu.Lock()
	h := t.history[tabID]
	seen := false
	for _, id := range h {
		if id == newID {
			seen = true
			break
		}
	}
	kept := h[:0]
	for _, id := range h {
		if id == oldID {
			if !seen {
				kept = append(kept, newID)
				seen = true
			}
			continue
		}
		kept = append(kept, id)
	}
	t.history[tabID] = kept
	if s, ok := t.states[tabID]; ok && s.LastNodeID == oldID {
		s.LastNodeID = newID
	}
	t.mu.Unlock()

	t.notify(TabEvent{Kind: TabEventHistoryUpdated, TabID: tabID, NodeID: newID})
}

// GetHistory returns a copy of the tab's visit history, oldest first.
func (t *Tracker) GetHistory(tabID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.history[tabID]
	out := make([]string, len(h))
	copy(out, h)
	return out
}

// GetLastNodeID returns the most recent node in the tab, falling back to the
// state's last node when history is empty. Empty string means none.
func (t *Tracker) GetLastNodeID(tabID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h := t.history[tabID]; len(h) > 0 {
		return h[len(h)-1]
	}
	if s, ok := t.states[tabID]; ok {
		return s.LastNodeID
	}
	return ""
}

// SetActiveTime marks the tab as active starting at ts (Unix millis).
func (t *Tracker) SetActiveTime(tabID string, ts int64) {
	t.mu.Lock()
	t.activeSince[tabID] = ts
	if s, ok := t.states[tabID]; ok {
		s.LastActiveTime = ts
	}
	t.mu.Unlock()
}

// GetElapsedActiveTime returns millis since the tab was last marked active,
// or 0 if it never was.
func (t *Tracker) GetElapsedActiveTime(tabID string, now int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	since, ok := t.activeSince[tabID]
	if !ok || now < since {
		return 0
	}
	return now - since
}

// MarkRemoved discards the tab's state, history, and activity tracking.
// Idempotent.
func (t *Tracker) MarkRemoved(tabID string) {
	t.mu.Lock()
	already := t.removed[tabID]
	delete(t.states, tabID)
	delete(t.history, tabID)
	delete(t.activeSince, tabID)
	t.removed[tabID] = true
	t.mu.Unlock()

	if !already {
		t.notify(TabEvent{Kind: TabEventRemoved, TabID: tabID})
	}
}

// IsRemoved reports whether the tab was removed.
func (t *Tracker) IsRemoved(tabID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removed[tabID]
}
