package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key identifies a cacheable response. Two queries share a key space when
// they belong to the same tenant, intent, and profile fingerprint; within
// that space, lookup is by embedding similarity over NormalizedText rather
// than exact match.
type Key struct {
	// TenantID scopes entries to one tenant. Never matched across tenants.
	TenantID string

	// Intent is the classified intent label.
	Intent string

	// NormalizedText is the lowercased, whitespace-collapsed query text.
	NormalizedText string

	// Fingerprint hashes the profile scope (subject and grade) so that the
	// same question asked for a different grade level gets a fresh answer.
	Fingerprint string
}

// NewKey builds a cache key from the raw query text and its profile scope.
func NewKey(tenantID, intent, text, subject string, grade int) Key {
	return Key{
		TenantID:       tenantID,
		Intent:         intent,
		NormalizedText: normalize(text),
		Fingerprint:    fingerprint(subject, grade),
	}
}

// ID returns a deterministic entry identifier. Storing the same key twice
// overwrites rather than duplicates.
func (k Key) ID() string {
	sum := sha256.Sum256([]byte(k.TenantID + "\x00" + k.Intent + "\x00" + k.Fingerprint + "\x00" + k.NormalizedText))
	return hex.EncodeToString(sum[:16])
}

// normalize lowercases and collapses runs of whitespace so trivially
// reworded queries embed identically.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// fingerprint hashes the profile scope.
func fingerprint(subject string, grade int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", strings.ToLower(subject), grade)))
	return hex.EncodeToString(sum[:8])
}
