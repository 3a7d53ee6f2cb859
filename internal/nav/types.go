// Package nav implements the navigation correlation engine: per-tab state
// tracking, time-bounded intent matching, node registration, and the
// correlator that turns raw browser events into a causal graph of page
// visits.
package nav

// NavigationType classifies the cause of a page visit.
type NavigationType string

const (
	NavInitial        NavigationType = "initial"
	NavLinkClick      NavigationType = "link_click"
	NavAddressBar     NavigationType = "address_bar"
	NavFormSubmit     NavigationType = "form_submit"
	NavReload         NavigationType = "reload"
	NavHistoryBack    NavigationType = "history_back"
	NavHistoryForward NavigationType = "history_forward"
	NavRedirect       NavigationType = "redirect"
	NavJavascript     NavigationType = "javascript"
)

// OpenTarget says where a navigation landed relative to its origin.
type OpenTarget string

const (
	OpenSameTab OpenTarget = "same_tab"
	OpenNewTab  OpenTarget = "new_tab"
	OpenPopup   OpenTarget = "popup"
	OpenFrame   OpenTarget = "frame"
)

// MetadataSource identifies which reporter supplied a piece of node metadata.
// The three reporters race and vary in trustworthiness per field; see
// Registry.UpdateMetadata for the merge policy.
type MetadataSource string

const (
	SourceChromeAPI       MetadataSource = "chrome_api"
	SourceContentScript   MetadataSource = "content_script"
	SourceNavigationEvent MetadataSource = "navigation_event"
)

// NavigationNode is a single recorded page visit.
type NavigationNode struct {
	ID              string         `json:"id"`
	TabID           string         `json:"tab_id"`
	URL             string         `json:"url"`
	Title           string         `json:"title,omitempty"`
	Favicon         string         `json:"favicon,omitempty"`
	ParentID        string         `json:"parent_id"` // empty = root
	Type            NavigationType `json:"type"`
	OpenTarget      OpenTarget     `json:"open_target"`
	Source          MetadataSource `json:"source"`
	Timestamp       int64          `json:"timestamp"` // Unix millis
	FirstVisit      int64          `json:"first_visit"`
	LastVisit       int64          `json:"last_visit"`
	VisitCount      int            `json:"visit_count"`
	ReloadCount     int            `json:"reload_count"`
	SPARequestCount int            `json:"spa_request_count"`
	FrameID         string         `json:"frame_id,omitempty"`
	ParentFrameID   string         `json:"parent_frame_id,omitempty"`
	IsClosed        bool           `json:"is_closed"`
	CloseTime       *int64         `json:"close_time,omitempty"`
	ActiveTime      *int64         `json:"active_time,omitempty"` // accumulated millis
	LoadTime        *int64         `json:"load_time,omitempty"`   // millis
	Referrer        string         `json:"referrer,omitempty"`
	SessionID       string         `json:"session_id"`
}

// NavigationEdge is a recorded causal transition between two nodes.
type NavigationEdge struct {
	ID             string         `json:"id"`
	SourceID       string         `json:"source_id"`
	TargetID       string         `json:"target_id"`
	Timestamp      int64          `json:"timestamp"`
	NavigationType NavigationType `json:"navigation_type"`
	SessionID      string         `json:"session_id"`
}

// TabState is the transient per-tab cursor. Zero timestamps mean unset.
type TabState struct {
	ID             string `json:"id"`
	URL            string `json:"url,omitempty"`
	Title          string `json:"title,omitempty"`
	Favicon        string `json:"favicon,omitempty"`
	Created        int64  `json:"created,omitempty"`
	Activated      int64  `json:"activated,omitempty"`
	LastNavigation int64  `json:"last_navigation,omitempty"`
	LastActiveTime int64  `json:"last_active_time,omitempty"`
	LastNodeID     string `json:"last_node_id,omitempty"`
}

// PendingNavigation is a not-yet-confirmed navigation intent awaiting its
// committed navigation.
type PendingNavigation struct {
	Type         NavigationType `json:"type"`
	SourceNodeID string         `json:"source_node_id,omitempty"`
	SourceURL    string         `json:"source_url"`
	TargetURL    string         `json:"target_url"`
	SourceTabID  string         `json:"source_tab_id,omitempty"`
	TargetTabID  string         `json:"target_tab_id,omitempty"`
	Timestamp    int64          `json:"timestamp"`
	ExpiresAt    int64          `json:"expires_at"`
	IsNewTab     bool           `json:"is_new_tab,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// ScriptNavigationRecord is one entry in a tab's script-navigation ring
// buffer, used only for javascript parent matching.
type ScriptNavigationRecord struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp int64  `json:"timestamp"`
}

// NodePatch is a partial node update applied by storage. Pointer fields are
// set-if-present; delta fields are added to the stored value.
type NodePatch struct {
	URL             *string
	Title           *string
	Favicon         *string
	ParentID        *string
	Referrer        *string
	Source          *MetadataSource
	LoadTime        *int64
	FirstVisit      *int64
	LastVisit       *int64
	IsClosed        *bool
	CloseTime       *int64
	ActiveTimeDelta int64
	VisitDelta      int
	ReloadDelta     int
	SPADelta        int
}

// NodeFilter selects nodes from storage. Nil fields match everything.
type NodeFilter struct {
	SessionID string
	TabID     string
	IsClosed  *bool
}

// Storage is the persistence collaborator. SaveNode may return an id
// different from the record's when it coalesces with an equivalent existing
// record; callers must adopt the returned id for all subsequent operations.
type Storage interface {
	GetNode(id string) (*NavigationNode, error)
	SaveNode(n *NavigationNode) (string, error)
	UpdateNode(id string, patch NodePatch) error
	QueryNodes(filter NodeFilter) ([]NavigationNode, error)
	SaveEdge(e *NavigationEdge) error
}

// LiveTabInfo is a best-effort snapshot of a tab from the host browser.
type LiveTabInfo struct {
	URL     string
	Title   string
	Favicon string
}

// TabInfoSource polls the host browser for live tab metadata. Callers must
// tolerate failure and stale data.
type TabInfoSource interface {
	GetTab(tabID string) (*LiveTabInfo, error)
}

func ptr[T any](v T) *T { return &v }
