// Package ids generates identifiers for nodes, edges, and sessions.
//
// Node ids are deterministic for the same tab and URL within a short time
// window: duplicate signals for one navigation hash to the same id, and the
// store's save-time coalescing is the backstop for anything that slips
// through. Edge and session ids are plain UUIDs.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"webtrail/internal/urlx"
)

// nodeWindow is the bucket width inside which the same tab+URL yields the
// same node id.
const nodeWindow = 10 * time.Second

// NodeID derives a node id from a tab, a URL, and the current time bucket.
func NodeID(tabID, url string) string {
	return nodeIDAt(tabID, url, time.Now())
}

func nodeIDAt(tabID, url string, at time.Time) string {
	bucket := at.UnixMilli() / nodeWindow.Milliseconds()
	h := sha256.New()
	h.Write([]byte(tabID))
	h.Write([]byte{0})
	h.Write([]byte(urlx.Normalize(url)))
	h.Write([]byte{0})
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(bucket >> (8 * i))
	}
	h.Write(buf[:])
	return "n-" + hex.EncodeToString(h.Sum(nil))[:16]
}

// EdgeID returns a random edge id.
func EdgeID() string {
	return "e-" + uuid.NewString()
}

// SessionID returns a random session id.
func SessionID() string {
	return "s-" + uuid.NewString()
}
