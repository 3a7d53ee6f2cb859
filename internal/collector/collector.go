// Package collector feeds the correlation engine from a live Chromium
// instance over the DevTools protocol. It is a best-effort event source:
// anything it fails to observe simply never becomes an event, and no handler
// failure is allowed to stop the stream.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"webtrail/internal/nav"
)

// Config holds collector settings.
type Config struct {
	AttachURL  string // DevTools websocket URL; empty launches a browser
	Headless   bool
	ThrottleMs int // min interval between tab-updated events per tab
}

// Collector bridges DevTools events to correlator handlers.
type Collector struct {
	cfg     Config
	corr    *nav.Correlator
	logger  *zap.Logger
	browser *rod.Browser

	mu       sync.Mutex
	tracked  map[proto.TargetTargetID]bool
	lastURL  map[string]string // tabID -> last committed main-frame URL
	reasons  map[string]string // tabID -> pending transition type for next commit
	lastSeen map[string]time.Time
}

// New creates a Collector feeding corr.
func New(cfg Config, corr *nav.Correlator, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:      cfg,
		corr:     corr,
		logger:   logger,
		tracked:  make(map[proto.TargetTargetID]bool),
		lastURL:  make(map[string]string),
		reasons:  make(map[string]string),
		lastSeen: make(map[string]time.Time),
	}
}

// SetCorrelator wires the event sink. The registry consumes the collector as
// its live tab-info source while the correlator consumes the collector's
// events, so one of the two links is set after construction. Must be called
// before Run.
func (c *Collector) SetCorrelator(corr *nav.Correlator) {
	c.corr = corr
}

// Run connects to the browser and streams events until the context is
// cancelled.
func (c *Collector) Run(ctx context.Context) error {
	controlURL := c.cfg.AttachURL
	if controlURL == "" {
		u, err := launcher.New().Headless(c.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
	}

	c.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := c.browser.Connect(); err != nil {
		return fmt.Errorf("connecting to browser: %w", err)
	}
	c.logger.Info("connected to browser", zap.String("control_url", controlURL))

	// Pick up tabs that already exist.
	if pages, err := c.browser.Pages(); err != nil {
		c.logger.Warn("listing existing pages failed", zap.Error(err))
	} else {
		for _, page := range pages {
			info, err := page.Info()
			if err != nil {
				continue
			}
			tabID := string(page.TargetID)
			c.dispatch("tab_created", func() error {
				return c.corr.OnTabCreated(nav.TabCreated{TabID: tabID, URL: info.URL})
			})
			c.trackPage(ctx, page.TargetID)
		}
	}

	wait := c.browser.EachEvent(
		func(ev *proto.TargetTargetCreated) {
			if ev.TargetInfo.Type != "page" {
				return
			}
			tabID := string(ev.TargetInfo.TargetID)
			opener := string(ev.TargetInfo.OpenerID)
			c.dispatch("tab_created", func() error {
				return c.corr.OnTabCreated(nav.TabCreated{
					TabID:       tabID,
					URL:         ev.TargetInfo.URL,
					OpenerTabID: opener,
				})
			})
			c.trackPage(ctx, ev.TargetInfo.TargetID)
		},
		func(ev *proto.TargetTargetInfoChanged) {
			if ev.TargetInfo.Type != "page" {
				return
			}
			tabID := string(ev.TargetInfo.TargetID)
			if !c.allow(tabID) {
				return
			}
			c.dispatch("tab_updated", func() error {
				return c.corr.OnTabUpdated(nav.TabUpdated{
					TabID: tabID,
					URL:   ev.TargetInfo.URL,
					Title: ev.TargetInfo.Title,
				})
			})
		},
		func(ev *proto.TargetTargetDestroyed) {
			tabID := string(ev.TargetID)
			c.mu.Lock()
			delete(c.tracked, ev.TargetID)
			delete(c.lastURL, tabID)
			delete(c.reasons, tabID)
			delete(c.lastSeen, tabID)
			c.mu.Unlock()
			c.dispatch("tab_removed", func() error {
				return c.corr.OnTabRemoved(nav.TabRemoved{TabID: tabID})
			})
		},
	)
	go wait()

	<-ctx.Done()
	return nil
}

// trackPage subscribes to a page's navigation, lifecycle, and network
// streams.
func (c *Collector) trackPage(ctx context.Context, targetID proto.TargetTargetID) {
	c.mu.Lock()
	if c.tracked[targetID] {
		c.mu.Unlock()
		return
	}
	c.tracked[targetID] = true
	c.mu.Unlock()

	page, err := c.browser.PageFromTarget(targetID)
	if err != nil {
		c.logger.Warn("attaching to page failed",
			zap.String("target", string(targetID)), zap.Error(err))
		return
	}
	tabID := string(targetID)
	mainFrame := page.FrameID

	if err := (proto.PageSetLifecycleEventsEnabled{Enabled: true}).Call(page); err != nil {
		c.logger.Debug("enabling lifecycle events failed",
			zap.String("target", string(targetID)), zap.Error(err))
	}

	// The protocol has no tab-focus event, so focus is observed from inside
	// the page: a binding fired on visibilitychange.
	if _, err := page.Expose("__webtrailActivated", func(gson.JSON) (interface{}, error) {
		c.dispatch("tab_activated", func() error {
			return c.corr.OnTabActivated(nav.TabActivated{TabID: tabID})
		})
		return nil, nil
	}); err != nil {
		c.logger.Debug("exposing activation binding failed",
			zap.String("target", string(targetID)), zap.Error(err))
	} else if _, err := page.EvalOnNewDocument(`
		document.addEventListener('visibilitychange', () => {
			if (document.visibilityState === 'visible') window.__webtrailActivated();
		});
		if (document.visibilityState === 'visible') window.__webtrailActivated();
	`); err != nil {
		c.logger.Debug("installing activation hook failed",
			zap.String("target", string(targetID)), zap.Error(err))
	}

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.PageFrameRequestedNavigation) {
			if ev.FrameID != mainFrame {
				return
			}
			c.onRequestedNavigation(tabID, ev)
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame.ParentID != "" {
				return
			}
			c.onCommitted(tabID, ev)
		},
		func(ev *proto.PageNavigatedWithinDocument) {
			c.mu.Lock()
			c.lastURL[tabID] = ev.URL
			c.mu.Unlock()
			c.dispatch("history_state", func() error {
				return c.corr.OnHistoryStateUpdated(nav.HistoryStateUpdate{TabID: tabID, URL: ev.URL})
			})
		},
		func(ev *proto.PageLifecycleEvent) {
			if ev.Name != "load" || ev.FrameID != mainFrame {
				return
			}
			c.mu.Lock()
			url := c.lastURL[tabID]
			c.mu.Unlock()
			if url == "" {
				return
			}
			c.dispatch("completed", func() error {
				return c.corr.OnCompleted(nav.CompletedNavigation{TabID: tabID, URL: url})
			})
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.RedirectResponse == nil || ev.Type != proto.NetworkResourceTypeDocument {
				return
			}
			c.dispatch("redirect", func() error {
				return c.corr.OnRedirect(nav.RedirectSignal{
					TabID:   tabID,
					FromURL: ev.RedirectResponse.URL,
					ToURL:   ev.Request.URL,
				})
			})
		},
	)
	go wait()
}

// onRequestedNavigation turns a navigation-intent report into the matching
// content intent and remembers the reason so the commit can be classified.
func (c *Collector) onRequestedNavigation(tabID string, ev *proto.PageFrameRequestedNavigation) {
	c.mu.Lock()
	from := c.lastURL[tabID]
	c.reasons[tabID] = transitionForReason(ev.Reason)
	c.mu.Unlock()

	switch ev.Reason {
	case proto.PageClientNavigationReasonAnchorClick:
		c.dispatch("link_click", func() error {
			return c.corr.OnLinkClick(nav.LinkClickIntent{
				TabID:     tabID,
				SourceURL: from,
				TargetURL: ev.URL,
				IsNewTab:  ev.Disposition == proto.PageClientNavigationDispositionNewTab,
			})
		})
	case proto.PageClientNavigationReasonFormSubmissionGet,
		proto.PageClientNavigationReasonFormSubmissionPost:
		c.dispatch("form_submit", func() error {
			return c.corr.OnFormSubmit(nav.FormSubmitIntent{
				TabID:     tabID,
				SourceURL: from,
				ActionURL: ev.URL,
			})
		})
	case proto.PageClientNavigationReasonScriptInitiated:
		c.dispatch("script_navigation", func() error {
			return c.corr.OnScriptNavigation(nav.ScriptNavigationIntent{
				TabID:   tabID,
				FromURL: from,
				ToURL:   ev.URL,
			})
		})
	}
}

func (c *Collector) onCommitted(tabID string, ev *proto.PageFrameNavigated) {
	c.mu.Lock()
	transition := c.reasons[tabID]
	delete(c.reasons, tabID)
	c.lastURL[tabID] = ev.Frame.URL
	c.mu.Unlock()

	c.dispatch("committed", func() error {
		return c.corr.OnCommitted(nav.CommittedNavigation{
			TabID:          tabID,
			URL:            ev.Frame.URL,
			FrameID:        string(ev.Frame.ID),
			ParentFrameID:  string(ev.Frame.ParentID),
			TransitionType: transition,
		})
	})
}

// transitionForReason maps a DevTools navigation reason onto the transition
// vocabulary the classifier understands.
func transitionForReason(reason proto.PageClientNavigationReason) string {
	switch reason {
	case proto.PageClientNavigationReasonAnchorClick:
		return "link"
	case proto.PageClientNavigationReasonFormSubmissionGet,
		proto.PageClientNavigationReasonFormSubmissionPost:
		return "form_submit"
	case proto.PageClientNavigationReasonReload:
		return "reload"
	case proto.PageClientNavigationReasonScriptInitiated:
		return "generated"
	case proto.PageClientNavigationReasonHTTPHeaderRefresh,
		proto.PageClientNavigationReasonMetaTagRefresh:
		return "generated"
	default:
		return ""
	}
}

// GetTab implements nav.TabInfoSource against the live browser.
func (c *Collector) GetTab(tabID string) (*nav.LiveTabInfo, error) {
	if c.browser == nil {
		return nil, fmt.Errorf("not connected")
	}
	page, err := c.browser.PageFromTarget(proto.TargetTargetID(tabID))
	if err != nil {
		return nil, fmt.Errorf("resolving tab %s: %w", tabID, err)
	}
	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("reading tab %s: %w", tabID, err)
	}
	return &nav.LiveTabInfo{URL: info.URL, Title: info.Title}, nil
}

// allow throttles per-tab metadata updates.
func (c *Collector) allow(tabID string) bool {
	if c.cfg.ThrottleMs <= 0 {
		return true
	}
	interval := time.Duration(c.cfg.ThrottleMs) * time.Millisecond
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.lastSeen[tabID]; ok && now.Sub(last) < interval {
		return false
	}
	c.lastSeen[tabID] = now
	return true
}

// dispatch is the handler error boundary: one bad event never blocks the
// next.
func (c *Collector) dispatch(kind string, fn func() error) {
	if err := fn(); err != nil {
		c.logger.Warn("event handler failed", zap.String("event", kind), zap.Error(err))
	}
}
