package nav

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"webtrail/internal/urlx"
)

// Intent carries the fields of a navigation intent signal.
type Intent struct {
	SourceURL    string
	TargetURL    string
	SourceNodeID string
	SourceTabID  string
	TargetTabID  string
	Timestamp    int64 // Unix millis
	TTL          time.Duration
	IsNewTab     bool
	Data         map[string]any
}

// Matcher holds not-yet-confirmed navigation intents until their committed
// navigation arrives or they expire.
//
// Intents live in two namespaces: link clicks, script navigations, and
// redirects already know their target URL and key on its normalized form;
// form submissions are observed before the browser resolves the final
// request URL and key on the submitting tab instead. Every intent has a hard
// expiry so a navigation that never materializes cannot leak memory.
type Matcher struct {
	mu         sync.Mutex
	byURL      map[string][]*PendingNavigation
	byTab      map[string][]*PendingNavigation
	scripts    map[string][]ScriptNavigationRecord
	defaultTTL time.Duration
	ringSize   int
	logger     *zap.Logger
	now        func() int64
}

// NewMatcher creates a Matcher with the given default intent TTL and script
// ring capacity.
func NewMatcher(defaultTTL time.Duration, ringSize int, logger *zap.Logger) *Matcher {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Second
	}
	if ringSize <= 0 {
		ringSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		byURL:      make(map[string][]*PendingNavigation),
		byTab:      make(map[string][]*PendingNavigation),
		scripts:    make(map[string][]ScriptNavigationRecord),
		defaultTTL: defaultTTL,
		ringSize:   ringSize,
		logger:     logger,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// AddIntent stores a navigation intent of the given kind. Form submissions
// are keyed by tab, everything else by normalized target URL.
func (m *Matcher) AddIntent(kind NavigationType, in Intent) {
	ttl := in.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	ts := in.Timestamp
	if ts == 0 {
		ts = m.now()
	}
	p := &PendingNavigation{
		Type:         kind,
		SourceNodeID: in.SourceNodeID,
		SourceURL:    in.SourceURL,
		TargetURL:    in.TargetURL,
		SourceTabID:  in.SourceTabID,
		TargetTabID:  in.TargetTabID,
		Timestamp:    ts,
		ExpiresAt:    ts + ttl.Milliseconds(),
		IsNewTab:     in.IsNewTab,
		Data:         in.Data,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == NavFormSubmit {
		key := tabKey(in.SourceTabID)
		m.byTab[key] = append(m.byTab[key], p)
		return
	}
	key := urlx.Normalize(in.TargetURL)
	m.byURL[key] = append(m.byURL[key], p)
}

func tabKey(tabID string) string { return "tab:" + tabID }

// AddScriptNavigation pushes a record onto the tab's script ring buffer,
// evicting the oldest entry at capacity.
func (m *Matcher) AddScriptNavigation(tabID string, rec ScriptNavigationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ring := append(m.scripts[tabID], rec)
	if len(ring) > m.ringSize {
		ring = ring[len(ring)-m.ringSize:]
	}
	m.scripts[tabID] = ring
}

// ConsumeMatch finds and removes the best pending intent for a committed
// navigation. URL-keyed intents are tried first, preferring one bound to the
// committing tab or flagged new-tab; the tab-keyed (form submit) bucket is
// the fallback. Returns nil when nothing matches. At most one intent is
// consumed per call.
func (m *Matcher) ConsumeMatch(targetURL, tabID string) *PendingNavigation {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	key := urlx.Normalize(targetURL)
	if bucket := m.byURL[key]; len(bucket) > 0 {
		best := -1
		for i, p := range bucket {
			if p.ExpiresAt <= now {
				continue
			}
			if p.IsNewTab || (tabID != "" && (p.SourceTabID == tabID || p.TargetTabID == tabID)) {
				best = i
				break
			}
			if best < 0 {
				best = i
			}
		}
		if best >= 0 {
			p := bucket[best]
			m.byURL[key] = append(bucket[:best], bucket[best+1:]...)
			if len(m.byURL[key]) == 0 {
				delete(m.byURL, key)
			}
			return p
		}
	}

	if tabID == "" {
		return nil
	}
	tkey := tabKey(tabID)
	for i, p := range m.byTab[tkey] {
		if p.ExpiresAt <= now {
			continue
		}
		bucket := m.byTab[tkey]
		m.byTab[tkey] = append(bucket[:i], bucket[i+1:]...)
		if len(m.byTab[tkey]) == 0 {
			delete(m.byTab, tkey)
		}
		return p
	}
	return nil
}

// FindScriptMatch scans the tab's script ring from most recent to oldest for
// a record whose destination equals targetURL. The record is not consumed;
// callers confirm a usable source node first and then call
// RemoveScriptNavigation with the returned index.
func (m *Matcher) FindScriptMatch(tabID, targetURL string) (ScriptNavigationRecord, int, bool) {
	norm := urlx.Normalize(targetURL)
	m.mu.Lock()
	defer m.mu.Unlock()
	ring := m.scripts[tabID]
	for i := len(ring) - 1; i >= 0; i-- {
		if urlx.Normalize(ring[i].To) == norm {
			return ring[i], i, true
		}
	}
	return ScriptNavigationRecord{}, -1, false
}

// RemoveScriptNavigation removes one consumed record from the tab's ring.
func (m *Matcher) RemoveScriptNavigation(tabID string, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ring := m.scripts[tabID]
	if index < 0 || index >= len(ring) {
		return
	}
	m.scripts[tabID] = append(ring[:index], ring[index+1:]...)
	if len(m.scripts[tabID]) == 0 {
		delete(m.scripts, tabID)
	}
}

// SweepExpired drops every expired intent across both namespaces and returns
// how many were removed. Run on a timer so lookups stay cheap.
func (m *Matcher) SweepExpired() int {
	now := m.now()
	removed := 0

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, bucket := range m.byURL {
		kept := bucket[:0]
		for _, p := range bucket {
			if p.ExpiresAt > now {
				kept = append(kept, p)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(m.byURL, key)
		} else {
			m.byURL[key] = kept
		}
	}
	for key, bucket := range m.byTab {
		kept := bucket[:0]
		for _, p := range bucket {
			if p.ExpiresAt > now {
				kept = append(kept, p)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(m.byTab, key)
		} else {
			m.byTab[key] = kept
		}
	}
	if removed > 0 {
		m.logger.Debug("swept expired intents", zap.Int("count", removed))
	}
	return removed
}

// ClearForTab drops every intent and script record tied to the tab.
func (m *Matcher) ClearForTab(tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTab, tabKey(tabID))
	delete(m.scripts, tabID)
	for key, bucket := range m.byURL {
		kept := bucket[:0]
		for _, p := range bucket {
			if p.SourceTabID != tabID && p.TargetTabID != tabID {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(m.byURL, key)
		} else {
			m.byURL[key] = kept
		}
	}
}

// Reset drops everything.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byURL = make(map[string][]*PendingNavigation)
	m.byTab = make(map[string][]*PendingNavigation)
	m.scripts = make(map[string][]ScriptNavigationRecord)
}
