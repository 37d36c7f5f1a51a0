// Package checksum identifies file contents for change detection and
// optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag formats a checksum as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether an If-Match header value admits the current
// checksum. An empty header or "*" matches anything; otherwise any listed
// tag must equal sum. Weak tags never match.
func Matches(ifMatch, sum string) bool {
	ifMatch = strings.TrimSpace(ifMatch)
	if ifMatch == "" || ifMatch == "*" {
		return true
	}
	for _, tag := range strings.Split(ifMatch, ",") {
		tag = strings.TrimSpace(tag)
		if strings.HasPrefix(tag, "W/") {
			continue
		}
		if strings.Trim(tag, `"`) == sum {
			return true
		}
	}
	return false
}
