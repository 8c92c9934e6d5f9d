// Package intent remembers where a user was heading before they were sent to a
// third-party identity provider, and works out where to send them once they
// come back.
package intent

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Key names one of the fixed redirect-intent slots.
type Key string

const (
	// KeyNext holds an internal path to continue to after login.
	KeyNext Key = "grantpilot.auth.next"
	// KeyOpportunity holds the funding opportunity a start flow was begun for.
	KeyOpportunity Key = "grantpilot.start.opportunity_id"
)

// Store holds at most one value per Key. Every value is single-use: once
// TakeAndClear has returned it, later reads observe nothing until the next
// Store call.
type Store interface {
	// Store writes value under key when it is acceptable for that key and
	// reports whether it was written.
	Store(key Key, value string) bool
	// TakeAndClear returns the stored value and removes it. ok is false when
	// nothing was stored, it was already consumed, or it fails validation.
	TakeAndClear(key Key) (value string, ok bool)
}

// IsSafeInternalPath reports whether value is a same-origin relative path.
// Browsers drop tab, CR and LF from URLs and read a backslash as "/", so a
// control character or backslash anywhere can turn the value into a
// protocol-relative URL to another host.
func IsSafeInternalPath(value string) bool {
	if !strings.HasPrefix(value, "/") || strings.HasPrefix(value, "//") {
		return false
	}
	for i := 0; i < len(value); i++ {
		if c := value[i]; c < 0x20 || c == 0x7f || c == '\\' {
			return false
		}
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// IsOpportunityID reports whether value is a canonical, hyphenated RFC 4122
// UUID of versions 1 to 5.
func IsOpportunityID(value string) bool {
	if len(value) != 36 {
		return false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return false
	}
	if id.Variant() != uuid.RFC4122 {
		return false
	}
	v := id.Version()
	return v >= 1 && v <= 5
}

// acceptable applies the per-slot check used on both write and read.
func acceptable(key Key, value string) bool {
	if value == "" {
		return false
	}
	switch key {
	case KeyNext:
		return IsSafeInternalPath(value)
	case KeyOpportunity:
		return IsOpportunityID(value)
	default:
		return false
	}
}
