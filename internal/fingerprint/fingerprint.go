// Package fingerprint derives deterministic cache keys from query text.
//
// DESIGN: Two queries that differ only in case, punctuation, or whitespace
// runs must produce the same fingerprint, so normalization happens before
// hashing. The digest is SHA-256 truncated to 16 hex characters (64 bits):
// caches are TTL-bounded and the collision probability at realistic entry
// counts is negligible. This is a deliberate trade-off for compact store
// keys, not an oversight.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DigestLength is the fingerprint length in hex characters.
const DigestLength = 16

// strippedPunctuation is removed during normalization.
const strippedPunctuation = ".,!?;:"

// Normalize lowercases the query, strips punctuation, and collapses
// whitespace runs into single spaces.
func Normalize(query string) string {
	lowered := strings.ToLower(query)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if strings.ContainsRune(strippedPunctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Compute returns the truncated digest of the normalized query.
func Compute(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])[:DigestLength]
}
