package nav

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"webtrail/internal/ids"
	"webtrail/internal/urlx"
)

// placeholderTitles are titles the browser reports before a page has loaded
// enough to say anything useful.
var placeholderTitles = map[string]bool{
	"new tab":     true,
	"untitled":    true,
	"about:blank": true,
	"loading...":  true,
}

func isPlaceholderTitle(title string) bool {
	return placeholderTitles[strings.ToLower(strings.TrimSpace(title))]
}

// isGenericFavicon reports whether a favicon URL comes from a favicon
// service rather than the page itself.
func isGenericFavicon(u string) bool {
	return strings.Contains(u, "/s2/favicons") ||
		strings.HasPrefix(u, "chrome://favicon")
}

type urlCacheEntry struct {
	id string
	at int64
}

// Registry creates, looks up, and merges metadata into navigation nodes. It
// keeps a tab+URL cache and a normalized-URL cache in front of storage, and a
// per-tab worklist of nodes still waiting for live metadata.
type Registry struct {
	mu          sync.Mutex
	store       Storage
	tabs        *Tracker
	tabInfo     TabInfoSource // may be nil
	tabURLCache map[string]string
	urlCache    map[string]urlCacheEntry
	worklist    map[string][]string
	cacheMaxAge time.Duration
	logger      *zap.Logger
	now         func() int64
}

// NewRegistry creates a Registry. tabInfo may be nil; live metadata
// enrichment is then skipped.
func NewRegistry(store Storage, tabs *Tracker, tabInfo TabInfoSource, cacheMaxAge time.Duration, logger *zap.Logger) *Registry {
	if cacheMaxAge <= 0 {
		cacheMaxAge = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:       store,
		tabs:        tabs,
		tabInfo:     tabInfo,
		tabURLCache: make(map[string]string),
		urlCache:    make(map[string]urlCacheEntry),
		worklist:    make(map[string][]string),
		cacheMaxAge: cacheMaxAge,
		logger:      logger,
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

func tabURLKey(tabID, url string) string {
	return tabID + "\x00" + urlx.Normalize(url)
}

// CreateNodeOpts describes the node to materialize.
type CreateNodeOpts struct {
	TabID         string
	URL           string
	SessionID     string
	Type          NavigationType
	OpenTarget    OpenTarget
	ParentID      string
	FrameID       string
	ParentFrameID string
	Referrer      string
	Timestamp     int64 // Unix millis; 0 = now
	ReloadCount   int   // propagated from the parent on reload
	FirstVisit    int64 // propagated from the parent on reload; 0 = Timestamp
}

// CreateNode materializes a node: derives an id, records it into the tab's
// history and state, registers the caches, enriches it best-effort with live
// tab metadata, and persists it. The returned id is the one storage accepted,
// which may differ from the locally derived one; all registry-side structures
// are re-pointed at it before returning. Returns empty only on unexpected
// failure.
func (r *Registry) CreateNode(opts CreateNodeOpts) string {
	if opts.URL == "" || opts.TabID == "" {
		return ""
	}
	ts := opts.Timestamp
	if ts == 0 {
		ts = r.now()
	}
	first := opts.FirstVisit
	if first == 0 {
		first = ts
	}
	if opts.Type == "" {
		opts.Type = NavInitial
	}
	if opts.OpenTarget == "" {
		opts.OpenTarget = OpenSameTab
	}

	id := ids.NodeID(opts.TabID, opts.URL)

	r.tabs.AppendHistory(opts.TabID, id)
	r.tabs.AddOrUpdateState(opts.TabID, TabStatePatch{
		URL:            opts.URL,
		LastNavigation: ts,
		LastNodeID:     id,
	})
	r.CacheForTabURL(opts.TabID, opts.URL, id)

	node := &NavigationNode{
		ID:            id,
		TabID:         opts.TabID,
		URL:           opts.URL,
		ParentID:      opts.ParentID,
		Type:          opts.Type,
		OpenTarget:    opts.OpenTarget,
		Source:        SourceNavigationEvent,
		Timestamp:     ts,
		FirstVisit:    first,
		LastVisit:     ts,
		VisitCount:    1,
		ReloadCount:   opts.ReloadCount,
		FrameID:       opts.FrameID,
		ParentFrameID: opts.ParentFrameID,
		Referrer:      opts.Referrer,
		SessionID:     opts.SessionID,
	}

	// Best-effort enrichment from the live tab; stale or failing is fine.
	if r.tabInfo != nil {
		if info, err := r.tabInfo.GetTab(opts.TabID); err != nil {
			r.logger.Debug("live tab lookup failed",
				zap.String("tab", opts.TabID), zap.Error(err))
		} else if info != nil && urlx.IsSame(info.URL, opts.URL) {
			node.Title = info.Title
			node.Favicon = info.Favicon
		}
	}
	if node.Title == "" {
		if s := r.tabs.GetState(opts.TabID); s != nil && urlx.IsSame(s.URL, opts.URL) {
			node.Title = s.Title
			if node.Favicon == "" {
				node.Favicon = s.Favicon
			}
		}
	}

	canonical, err := r.store.SaveNode(node)
	if err != nil {
		// Degrade to the local id so the in-memory caches stay consistent.
		r.logger.Warn("saving node failed, keeping local id",
			zap.String("node", id), zap.String("url", opts.URL), zap.Error(err))
		canonical = id
	}
	if canonical != id {
		r.tabs.ReplaceHistory(opts.TabID, id, canonical)
		r.CacheForTabURL(opts.TabID, opts.URL, canonical)
	}

	if node.Title == "" {
		r.addToWorklist(opts.TabID, canonical)
	}
	return canonical
}

// GetOrCreateOpts parameterizes GetOrCreateForURL.
type GetOrCreateOpts struct {
	TabID     string
	SessionID string
	Referrer  string
	Timestamp int64
	Type      NavigationType
}

// GetOrCreateForURL returns the node already representing url in the tab,
// bumping its visit bookkeeping, or creates one. A new node's parent comes
// from the referrer (reverse lookup against the session's stored nodes) and
// failing that from the tab's last node.
func (r *Registry) GetOrCreateForURL(url string, opts GetOrCreateOpts) (id string, isNew bool) {
	if existing := r.ResolveNodeIDForTab(opts.TabID, url); existing != "" {
		ts := opts.Timestamp
		if ts == 0 {
			ts = r.now()
		}
		if err := r.store.UpdateNode(existing, NodePatch{LastVisit: &ts, VisitDelta: 1}); err != nil {
			r.logger.Warn("bumping visit failed", zap.String("node", existing), zap.Error(err))
		}
		return existing, false
	}

	parent := ""
	if opts.Referrer != "" {
		parent = r.resolveByURL(opts.SessionID, opts.Referrer)
	}
	if parent == "" {
		parent = r.tabs.GetLastNodeID(opts.TabID)
	}
	navType := opts.Type
	if navType == "" {
		navType = NavJavascript
	}
	created := r.CreateNode(CreateNodeOpts{
		TabID:     opts.TabID,
		URL:       url,
		SessionID: opts.SessionID,
		Type:      navType,
		ParentID:  parent,
		Referrer:  opts.Referrer,
		Timestamp: opts.Timestamp,
	})
	return created, created != ""
}

// resolveByURL finds a stored node in the session whose URL is equivalent to
// url, going through the normalized-URL cache first.
func (r *Registry) resolveByURL(sessionID, url string) string {
	norm := urlx.Normalize(url)
	now := r.now()

	r.mu.Lock()
	if e, ok := r.urlCache[norm]; ok && now-e.at < r.cacheMaxAge.Milliseconds() {
		r.mu.Unlock()
		return e.id
	}
	r.mu.Unlock()

	nodes, err := r.store.QueryNodes(NodeFilter{SessionID: sessionID})
	if err != nil {
		r.logger.Debug("referrer lookup failed", zap.Error(err))
		return ""
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if urlx.IsSame(nodes[i].URL, url) {
			r.mu.Lock()
			r.urlCache[norm] = urlCacheEntry{id: nodes[i].ID, at: now}
			r.mu.Unlock()
			return nodes[i].ID
		}
	}
	return ""
}

// MetadataPatch carries fields reported about an existing node.
type MetadataPatch struct {
	Title    string
	Favicon  string
	Referrer string
	LoadTime *int64
}

// UpdateResult reports what a metadata merge changed.
type UpdateResult struct {
	Success       bool
	UpdatedFields []string
	Err           string
}

// UpdateMetadata merges reported metadata into a node under a source-priority
// policy rather than last-write-wins:
//
//   - Title: kept if absent; content_script overwrites a shorter or
//     placeholder title; chrome_api overwrites only a navigation_event title.
//   - Favicon: kept if absent; content_script may replace a favicon-service
//     URL; chrome_api may replace a navigation_event favicon.
//   - Referrer: set only while the node has no parent.
//   - LoadTime: first measurement wins.
//   - Source: upgraded content_script over chrome_api, or set if absent.
func (r *Registry) UpdateMetadata(nodeID string, patch MetadataPatch, source MetadataSource) UpdateResult {
	node, err := r.store.GetNode(nodeID)
	if err != nil {
		return UpdateResult{Err: fmt.Sprintf("loading node: %v", err)}
	}
	if node == nil {
		return UpdateResult{Err: "node not found: " + nodeID}
	}

	var store NodePatch
	var updated []string

	if patch.Title != "" && patch.Title != node.Title {
		overwrite := false
		switch {
		case node.Title == "":
			overwrite = true
		case source == SourceContentScript:
			overwrite = len(node.Title) < len(patch.Title) || isPlaceholderTitle(node.Title)
		case source == SourceChromeAPI:
			overwrite = node.Source == SourceNavigationEvent
		}
		if overwrite {
			store.Title = ptr(patch.Title)
			updated = append(updated, "title")
		}
	}

	if patch.Favicon != "" && patch.Favicon != node.Favicon {
		overwrite := false
		switch {
		case node.Favicon == "":
			overwrite = true
		case source == SourceContentScript:
			overwrite = isGenericFavicon(node.Favicon)
		case source == SourceChromeAPI:
			overwrite = node.Source == SourceNavigationEvent
		}
		if overwrite {
			store.Favicon = ptr(patch.Favicon)
			updated = append(updated, "favicon")
		}
	}

	if patch.Referrer != "" && node.ParentID == "" && node.Referrer == "" {
		store.Referrer = ptr(patch.Referrer)
		updated = append(updated, "referrer")
	}

	if patch.LoadTime != nil && node.LoadTime == nil {
		store.LoadTime = patch.LoadTime
		updated = append(updated, "load_time")
	}

	if node.Source == "" || (source == SourceContentScript && node.Source == SourceChromeAPI) {
		store.Source = ptr(source)
		updated = append(updated, "source")
	}

	if len(updated) == 0 {
		return UpdateResult{Success: true}
	}
	if err := r.store.UpdateNode(nodeID, store); err != nil {
		return UpdateResult{Err: fmt.Sprintf("updating node: %v", err)}
	}
	return UpdateResult{Success: true, UpdatedFields: updated}
}

// ResolveNodeIDForTab finds the node representing url in the tab: exact
// cache hit first, then a recency-biased scan of the tab's history, then the
// tab's current state. Empty string means no match.
func (r *Registry) ResolveNodeIDForTab(tabID, url string) string {
	if id := r.CachedForTabURL(tabID, url); id != "" {
		return id
	}

	history := r.tabs.GetHistory(tabID)
	for i := len(history) - 1; i >= 0; i-- {
		node, err := r.store.GetNode(history[i])
		if err != nil || node == nil {
			continue
		}
		if urlx.IsSame(node.URL, url) {
			r.CacheForTabURL(tabID, url, node.ID)
			return node.ID
		}
	}

	if s := r.tabs.GetState(tabID); s != nil && s.LastNodeID != "" && urlx.IsSame(s.URL, url) {
		return s.LastNodeID
	}
	return ""
}

// CacheForTabURL records the node id serving a tab+URL pair.
func (r *Registry) CacheForTabURL(tabID, url, nodeID string) {
	r.mu.Lock()
	r.tabURLCache[tabURLKey(tabID, url)] = nodeID
	r.mu.Unlock()
}

// CachedForTabURL returns the cached node id for a tab+URL pair, if any.
func (r *Registry) CachedForTabURL(tabID, url string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tabURLCache[tabURLKey(tabID, url)]
}

// ClearTabCache drops every cache and worklist entry for a removed tab.
func (r *Registry) ClearTabCache(tabID string) {
	prefix := tabID + "\x00"
	r.mu.Lock()
	for key := range r.tabURLCache {
		if strings.HasPrefix(key, prefix) {
			delete(r.tabURLCache, key)
		}
	}
	delete(r.worklist, tabID)
	r.mu.Unlock()
}

func (r *Registry) addToWorklist(tabID, nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.worklist[tabID] {
		if id == nodeID {
			return
		}
	}
	r.worklist[tabID] = append(r.worklist[tabID], nodeID)
}

// ApplyLiveMetadata pushes freshly observed tab metadata onto every node in
// the tab's worklist, dropping nodes once they have a real title.
func (r *Registry) ApplyLiveMetadata(tabID, title, favicon string) {
	if title == "" && favicon == "" {
		return
	}
	r.mu.Lock()
	pending := make([]string, len(r.worklist[tabID]))
	copy(pending, r.worklist[tabID])
	r.mu.Unlock()

	var remaining []string
	for _, id := range pending {
		res := r.UpdateMetadata(id, MetadataPatch{Title: title, Favicon: favicon}, SourceChromeAPI)
		if res.Err != "" {
			r.logger.Debug("worklist metadata update failed",
				zap.String("node", id), zap.String("error", res.Err))
			remaining = append(remaining, id)
			continue
		}
		node, err := r.store.GetNode(id)
		if err != nil || node == nil || node.Title == "" || isPlaceholderTitle(node.Title) {
			remaining = append(remaining, id)
		}
	}

	r.mu.Lock()
	if len(remaining) == 0 {
		delete(r.worklist, tabID)
	} else {
		r.worklist[tabID] = remaining
	}
	r.mu.Unlock()
}

// ActiveNodes returns, per tab, the node at the tip of its history (or the
// state's last node). Used by closing and session-association workflows.
func (r *Registry) ActiveNodes() map[string]string {
	out := make(map[string]string)
	for _, s := range r.tabs.GetAllStates() {
		if id := r.tabs.GetLastNodeID(s.ID); id != "" {
			out[s.ID] = id
		}
	}
	return out
}

// PruneCaches drops URL-resolution cache entries past their age limit and
// worklist entries whose nodes no longer exist in storage.
func (r *Registry) PruneCaches() {
	now := r.now()
	maxAge := r.cacheMaxAge.Milliseconds()

	r.mu.Lock()
	for key, e := range r.urlCache {
		if now-e.at >= maxAge {
			delete(r.urlCache, key)
		}
	}
	worklists := make(map[string][]string, len(r.worklist))
	for tab, nodes := range r.worklist {
		cp := make([]string, len(nodes))
		copy(cp, nodes)
		worklists[tab] = cp
	}
	r.mu.Unlock()

	for tab, nodes := range worklists {
		kept := nodes[:0]
		for _, id := range nodes {
			node, err := r.store.GetNode(id)
			if err != nil || node != nil {
				kept = append(kept, id)
			}
		}
		r.mu.Lock()
		if len(kept) == 0 {
			delete(r.worklist, tab)
		} else {
			r.worklist[tab] = kept
		}
		r.mu.Unlock()
	}
}
