// Package urlx provides URL normalization and equivalence checks used to
// correlate navigation signals that report the same page in different forms.
package urlx

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters that never change page identity.
var trackingParams = map[string]bool{
	"fbclid":       true,
	"gclid":        true,
	"msclkid":      true,
	"mc_cid":       true,
	"mc_eid":       true,
	"igshid":       true,
	"ref_src":      true,
	"spm":          true,
	"_hsenc":       true,
	"_hsmi":        true,
	"vero_conv":    true,
	"vero_id":      true,
	"yclid":        true,
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// Normalize returns a canonical form of a URL: lowercase scheme and host,
// default port stripped, trailing slash trimmed, tracking query parameters
// removed, remaining query parameters sorted, fragment dropped.
// Unparseable input is returned trimmed and lowercased so callers can still
// use it as a map key.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Strip default port
	if port := u.Port(); port != "" && defaultPorts[u.Scheme] == port {
		u.Host = u.Hostname()
	}

	// Trailing slash: "/" and "" are the same page, as are "/a/" and "/a"
	if u.Path == "/" {
		u.Path = ""
	} else {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	u.Fragment = ""
	u.RawQuery = normalizeQuery(u.Query())

	return u.String()
}

// normalizeQuery drops tracking parameters and re-encodes the rest in sorted
// key order so that query-order differences do not break equivalence.
func normalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if trackingParams[strings.ToLower(k)] {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// IsSame reports whether two URLs identify the same page after normalization.
func IsSame(a, b string) bool {
	if a == b {
		return true
	}
	return Normalize(a) == Normalize(b)
}

// systemSchemes are browser-internal schemes that never produce graph nodes.
var systemSchemes = []string{
	"chrome://", "chrome-extension://", "chrome-error://", "chrome-untrusted://",
	"devtools://", "edge://", "about:", "view-source:", "data:", "blob:",
}

// IsSystemPage reports whether a URL points at a browser-internal or blank
// page that should be ignored by the correlation engine.
func IsSystemPage(raw string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if trimmed == "" {
		return true
	}
	for _, prefix := range systemSchemes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
