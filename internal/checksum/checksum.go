// Package checksum computes the document digests used as ETags and as
// change markers by the watcher.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data hashes to sum, ignoring case and
// surrounding quotes as sent in If-Match headers.
func Matches(data []byte, sum string) bool {
	sum = strings.ToLower(strings.Trim(strings.TrimSpace(sum), `"`))
	if sum == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Sum(data)), []byte(sum)) == 1
}
