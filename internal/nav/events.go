package nav

// Events delivered by the host event source. Timestamps are Unix millis; a
// zero timestamp means "now".

// CommittedNavigation marks a navigation committed to a frame.
type CommittedNavigation struct {
	TabID          string
	URL            string
	FrameID        string
	ParentFrameID  string // non-empty = subframe
	TransitionType string
	Qualifiers     []string
	Disposition    string // window disposition for API-originated opens
	Timestamp      int64
}

// CompletedNavigation marks a navigation finished loading.
type CompletedNavigation struct {
	TabID     string
	URL       string
	Timestamp int64
}

// HistoryStateUpdate is an in-page (SPA) route change without a new document.
type HistoryStateUpdate struct {
	TabID     string
	URL       string
	Timestamp int64
}

// RedirectSignal reports one hop of an HTTP redirect chain.
type RedirectSignal struct {
	TabID     string
	FromURL   string
	ToURL     string
	Timestamp int64
}

// TabCreated reports a new tab, with its opener when known.
type TabCreated struct {
	TabID       string
	URL         string
	OpenerTabID string
	Timestamp   int64
}

// TabUpdated reports fresh tab metadata.
type TabUpdated struct {
	TabID     string
	URL       string
	Title     string
	Favicon   string
	Timestamp int64
}

// TabActivated reports focus moving to a tab.
type TabActivated struct {
	TabID     string
	Timestamp int64
}

// TabRemoved reports a tab closing.
type TabRemoved struct {
	TabID     string
	Timestamp int64
}

// LinkClickIntent is a content-reported link click.
type LinkClickIntent struct {
	TabID     string
	SourceURL string
	TargetURL string
	IsNewTab  bool
	Timestamp int64
}

// FormSubmitIntent is a content-reported form submission. ActionURL may be
// relative or unresolved; matching falls back to the submitting tab.
type FormSubmitIntent struct {
	TabID     string
	SourceURL string
	ActionURL string
	Timestamp int64
}

// ScriptNavigationIntent is a content-reported script-driven URL change.
type ScriptNavigationIntent struct {
	TabID     string
	FromURL   string
	ToURL     string
	Timestamp int64
}
