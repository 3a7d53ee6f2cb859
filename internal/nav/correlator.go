package nav

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"webtrail/internal/config"
	"webtrail/internal/ids"
	"webtrail/internal/urlx"
)

// Correlator turns raw browser events into nodes and edges. It owns the
// Tracker and Matcher exclusively; nothing outside this package writes to
// them. Handlers never fail the browser action they observe: a handler error
// is logged by the dispatch boundary and the next event proceeds untouched.
type Correlator struct {
	tabs      *Tracker
	pending   *Matcher
	registry  *Registry
	store     Storage
	sessionID string
	cfg       config.Config
	logger    *zap.Logger
	now       func() int64

	mu            sync.Mutex
	lastActiveTab string
}

// NewCorrelator wires the engine together for one session.
func NewCorrelator(store Storage, tabs *Tracker, pending *Matcher, registry *Registry, sessionID string, cfg config.Config, logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{
		tabs:      tabs,
		pending:   pending,
		registry:  registry,
		store:     store,
		sessionID: sessionID,
		cfg:       cfg,
		logger:    logger,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

func (c *Correlator) ts(t int64) int64 {
	if t != 0 {
		return t
	}
	return c.now()
}

// StartMaintenance runs the periodic intent sweep and cache prune until the
// context is cancelled.
func (c *Correlator) StartMaintenance(ctx context.Context) {
	go func() {
		sweep := time.NewTicker(c.cfg.SweepInterval)
		prune := time.NewTicker(c.cfg.CachePruneInterval)
		defer sweep.Stop()
		defer prune.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweep.C:
				c.pending.SweepExpired()
			case <-prune.C:
				c.registry.PruneCaches()
			}
		}
	}()
}

// OnCommitted handles a committed navigation: filter, classify, resolve the
// parent, materialize the node, and record the causal edge.
func (c *Correlator) OnCommitted(ev CommittedNavigation) error {
	if ev.ParentFrameID != "" && ev.ParentFrameID != ev.FrameID {
		return nil // subframe
	}
	if urlx.IsSystemPage(ev.URL) {
		return nil
	}
	ts := c.ts(ev.Timestamp)

	navType, openTarget := classifyTransition(ev.TransitionType)
	navType = applyQualifiers(navType, ev.Qualifiers)
	openTarget = classifyOpenTarget(openTarget, ev.Disposition)

	parent, navType := c.resolveParent(ev.TabID, ev.URL, navType)

	// A reload repeats the page: carry the lineage counters forward.
	reloadCount := 0
	var firstVisit int64
	if navType == NavReload && parent != "" {
		if prev, err := c.store.GetNode(parent); err != nil {
			c.logger.Debug("loading reload parent failed", zap.String("node", parent), zap.Error(err))
		} else if prev != nil {
			reloadCount = prev.ReloadCount + 1
			firstVisit = prev.FirstVisit
		}
	}

	nodeID := c.registry.CreateNode(CreateNodeOpts{
		TabID:         ev.TabID,
		URL:           ev.URL,
		SessionID:     c.sessionID,
		Type:          navType,
		OpenTarget:    openTarget,
		ParentID:      parent,
		FrameID:       ev.FrameID,
		ParentFrameID: ev.ParentFrameID,
		Timestamp:     ts,
		ReloadCount:   reloadCount,
		FirstVisit:    firstVisit,
	})
	if nodeID == "" {
		return fmt.Errorf("materializing node for %s in tab %s", ev.URL, ev.TabID)
	}

	if parent != "" && parent != nodeID {
		c.recordEdge(parent, nodeID, navType, ts)
	}
	return nil
}

// resolveParent runs the ordered parent-resolution chain: the tab's last
// node, then a consumed pending intent (which also overrides the
// classification and, when it names a source node, the parent), then a
// script-navigation buffer match for javascript navigations, with root
// promotion applied as the final unconditional pass.
func (c *Correlator) resolveParent(tabID, url string, navType NavigationType) (string, NavigationType) {
	parent := c.tabs.GetLastNodeID(tabID)
	intentParent := false

	if p := c.pending.ConsumeMatch(url, tabID); p != nil {
		navType = p.Type
		if p.SourceNodeID != "" {
			parent = p.SourceNodeID
			intentParent = true
		}
	}

	if navType == NavJavascript {
		if rec, idx, ok := c.pending.FindScriptMatch(tabID, url); ok {
			if id := c.historyNodeByURL(tabID, rec.From); id != "" {
				parent = id
				c.pending.RemoveScriptNavigation(tabID, idx)
			}
		}
	}

	// Root promotion: explicit navigations start new trees unless an intent
	// supplied the source.
	if (navType == NavInitial || navType == NavAddressBar) && !intentParent {
		parent = ""
	}
	return parent, navType
}

// historyNodeByURL finds the oldest history entry of the tab whose stored
// URL matches url.
func (c *Correlator) historyNodeByURL(tabID, url string) string {
	for _, id := range c.tabs.GetHistory(tabID) {
		node, err := c.store.GetNode(id)
		if err != nil || node == nil {
			continue
		}
		if urlx.IsSame(node.URL, url) {
			return id
		}
	}
	return ""
}

func (c *Correlator) recordEdge(sourceID, targetID string, navType NavigationType, ts int64) {
	edge := &NavigationEdge{
		ID:             ids.EdgeID(),
		SourceID:       sourceID,
		TargetID:       targetID,
		Timestamp:      ts,
		NavigationType: navType,
		SessionID:      c.sessionID,
	}
	if err := c.store.SaveEdge(edge); err != nil {
		c.logger.Warn("saving edge failed",
			zap.String("source", sourceID), zap.String("target", targetID), zap.Error(err))
	}
}

// OnCompleted records the load time of the navigation's node.
func (c *Correlator) OnCompleted(ev CompletedNavigation) error {
	nodeID := c.registry.ResolveNodeIDForTab(ev.TabID, ev.URL)
	if nodeID == "" {
		return nil
	}
	node, err := c.store.GetNode(nodeID)
	if err != nil || node == nil {
		return nil
	}
	loadTime := c.ts(ev.Timestamp) - node.Timestamp
	if loadTime < 0 {
		return nil
	}
	if res := c.registry.UpdateMetadata(nodeID, MetadataPatch{LoadTime: &loadTime}, SourceNavigationEvent); res.Err != "" {
		return fmt.Errorf("recording load time: %s", res.Err)
	}
	return nil
}

// OnHistoryStateUpdated handles an SPA route change. When a node already
// represents this tab+URL it is a same-page request: visit bookkeeping is
// bumped instead of creating a node. Otherwise a new node is created off the
// tab's last node; without one the event carries no causal information and
// is dropped.
func (c *Correlator) OnHistoryStateUpdated(ev HistoryStateUpdate) error {
	if urlx.IsSystemPage(ev.URL) {
		return nil
	}
	ts := c.ts(ev.Timestamp)

	if nodeID := c.registry.ResolveNodeIDForTab(ev.TabID, ev.URL); nodeID != "" {
		patch := NodePatch{LastVisit: &ts, SPADelta: 1}
		if node, err := c.store.GetNode(nodeID); err == nil && node != nil && node.URL != ev.URL {
			patch.URL = &ev.URL
		}
		if err := c.store.UpdateNode(nodeID, patch); err != nil {
			return fmt.Errorf("bumping same-page visit: %w", err)
		}
		c.tabs.AddOrUpdateState(ev.TabID, TabStatePatch{
			URL:            ev.URL,
			LastNavigation: ts,
			LastNodeID:     nodeID,
		})
		return nil
	}

	parent := c.tabs.GetLastNodeID(ev.TabID)
	if parent == "" {
		return nil
	}
	nodeID := c.registry.CreateNode(CreateNodeOpts{
		TabID:     ev.TabID,
		URL:       ev.URL,
		SessionID: c.sessionID,
		Type:      NavJavascript,
		ParentID:  parent,
		Timestamp: ts,
	})
	if nodeID == "" {
		return fmt.Errorf("materializing SPA node for %s", ev.URL)
	}
	if parent != nodeID {
		c.recordEdge(parent, nodeID, NavJavascript, ts)
	}
	return nil
}

// OnRedirect flattens one redirect hop into a pending intent keyed by the
// target URL. No node or edge is created here; the committed navigation for
// the target consumes the intent and draws a single edge from the
// pre-redirect page.
func (c *Correlator) OnRedirect(ev RedirectSignal) error {
	sourceID := c.registry.ResolveNodeIDForTab(ev.TabID, ev.FromURL)
	c.pending.AddIntent(NavRedirect, Intent{
		SourceURL:    ev.FromURL,
		TargetURL:    ev.ToURL,
		SourceNodeID: sourceID,
		SourceTabID:  ev.TabID,
		Timestamp:    c.ts(ev.Timestamp),
		TTL:          c.cfg.RedirectTTL,
	})
	return nil
}

// OnTabCreated records the tab and, when it opens on a meaningful URL with a
// known opener, synthesizes the cross-tab causality the committed event
// alone would miss.
func (c *Correlator) OnTabCreated(ev TabCreated) error {
	ts := c.ts(ev.Timestamp)
	c.tabs.AddOrUpdateState(ev.TabID, TabStatePatch{URL: ev.URL, Created: ts})

	if urlx.IsSystemPage(ev.URL) {
		return nil
	}

	parent := ""
	if p := c.pending.ConsumeMatch(ev.URL, ev.TabID); p != nil && p.SourceNodeID != "" {
		parent = p.SourceNodeID
	} else if ev.OpenerTabID != "" {
		parent = c.tabs.GetLastNodeID(ev.OpenerTabID)
	}
	if parent == "" {
		return nil // the committed navigation will take it from here
	}

	nodeID := c.registry.CreateNode(CreateNodeOpts{
		TabID:      ev.TabID,
		URL:        ev.URL,
		SessionID:  c.sessionID,
		Type:       NavInitial,
		OpenTarget: OpenNewTab,
		ParentID:   parent,
		Timestamp:  ts,
	})
	if nodeID == "" {
		return fmt.Errorf("materializing opener node for %s", ev.URL)
	}
	if parent != nodeID {
		c.recordEdge(parent, nodeID, NavLinkClick, ts)
	}
	return nil
}

// OnTabUpdated merges fresh tab metadata into the tracker and pushes it onto
// nodes still waiting for a title.
func (c *Correlator) OnTabUpdated(ev TabUpdated) error {
	c.tabs.AddOrUpdateState(ev.TabID, TabStatePatch{
		URL:     ev.URL,
		Title:   ev.Title,
		Favicon: ev.Favicon,
	})
	c.registry.ApplyLiveMetadata(ev.TabID, ev.Title, ev.Favicon)
	return nil
}

// OnTabActivated flushes the previously active tab's dwell time onto its
// last node and starts the clock on the newly active one.
func (c *Correlator) OnTabActivated(ev TabActivated) error {
	ts := c.ts(ev.Timestamp)

	c.mu.Lock()
	previous := c.lastActiveTab
	c.lastActiveTab = ev.TabID
	c.mu.Unlock()

	if previous != "" && previous != ev.TabID {
		c.flushActiveTime(previous, ts)
	}
	c.tabs.AddOrUpdateState(ev.TabID, TabStatePatch{Activated: ts})
	c.tabs.SetActiveTime(ev.TabID, ts)
	return nil
}

func (c *Correlator) flushActiveTime(tabID string, now int64) {
	elapsed := c.tabs.GetElapsedActiveTime(tabID, now)
	if elapsed <= 0 {
		return
	}
	nodeID := c.tabs.GetLastNodeID(tabID)
	if nodeID == "" {
		return
	}
	if err := c.store.UpdateNode(nodeID, NodePatch{ActiveTimeDelta: elapsed}); err != nil {
		c.logger.Debug("flushing active time failed", zap.String("node", nodeID), zap.Error(err))
	}
	c.tabs.SetActiveTime(tabID, now)
}

// OnTabRemoved flushes the tab's dwell time, marks every node in its history
// closed, and discards its transient state.
func (c *Correlator) OnTabRemoved(ev TabRemoved) error {
	ts := c.ts(ev.Timestamp)
	c.flushActiveTime(ev.TabID, ts)

	closed := true
	for _, nodeID := range c.tabs.GetHistory(ev.TabID) {
		if err := c.store.UpdateNode(nodeID, NodePatch{IsClosed: &closed, CloseTime: &ts}); err != nil {
			c.logger.Debug("closing node failed", zap.String("node", nodeID), zap.Error(err))
		}
	}

	c.mu.Lock()
	if c.lastActiveTab == ev.TabID {
		c.lastActiveTab = ""
	}
	c.mu.Unlock()

	c.tabs.MarkRemoved(ev.TabID)
	c.pending.ClearForTab(ev.TabID)
	c.registry.ClearTabCache(ev.TabID)
	return nil
}

// OnLinkClick records a link-click intent for the upcoming navigation.
func (c *Correlator) OnLinkClick(ev LinkClickIntent) error {
	source := c.registry.ResolveNodeIDForTab(ev.TabID, ev.SourceURL)
	if source == "" {
		source = c.tabs.GetLastNodeID(ev.TabID)
	}
	c.pending.AddIntent(NavLinkClick, Intent{
		SourceURL:    ev.SourceURL,
		TargetURL:    ev.TargetURL,
		SourceNodeID: source,
		SourceTabID:  ev.TabID,
		IsNewTab:     ev.IsNewTab,
		Timestamp:    c.ts(ev.Timestamp),
	})
	return nil
}

// OnFormSubmit records a form-submit intent. The action URL is often
// unresolved at this point, so the intent is keyed by the submitting tab.
func (c *Correlator) OnFormSubmit(ev FormSubmitIntent) error {
	source := c.registry.ResolveNodeIDForTab(ev.TabID, ev.SourceURL)
	if source == "" {
		source = c.tabs.GetLastNodeID(ev.TabID)
	}
	c.pending.AddIntent(NavFormSubmit, Intent{
		SourceURL:    ev.SourceURL,
		TargetURL:    ev.ActionURL,
		SourceNodeID: source,
		SourceTabID:  ev.TabID,
		Timestamp:    c.ts(ev.Timestamp),
	})
	return nil
}

// OnScriptNavigation records a script navigation both as a ring-buffer entry
// for heuristic parent matching and as a URL-keyed intent.
func (c *Correlator) OnScriptNavigation(ev ScriptNavigationIntent) error {
	ts := c.ts(ev.Timestamp)
	c.pending.AddScriptNavigation(ev.TabID, ScriptNavigationRecord{
		From:      ev.FromURL,
		To:        ev.ToURL,
		Timestamp: ts,
	})

	source := c.registry.ResolveNodeIDForTab(ev.TabID, ev.FromURL)
	c.pending.AddIntent(NavJavascript, Intent{
		SourceURL:    ev.FromURL,
		TargetURL:    ev.ToURL,
		SourceNodeID: source,
		SourceTabID:  ev.TabID,
		Timestamp:    ts,
	})
	return nil
}
