package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewItemID returns a fresh lowercase uuid.
func NewItemID() string {
	return uuid.NewString()
}

// NewActorID returns act-<8 hex chars>.
func NewActorID() string {
	return "act-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NormalizeID canonicalizes an item id so braced / uppercase forms compare equal.
// Values that are not uuids are returned trimmed and otherwise untouched.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if u, err := uuid.Parse(strings.Trim(id, "{}")); err == nil {
		return u.String()
	}
	return id
}

// ShortID renders an item id as 32 uppercase hex characters (no braces or dashes).
// This is the form submitted by the sort dialog.
func ShortID(id string) string {
	u, err := uuid.Parse(strings.Trim(strings.TrimSpace(id), "{}"))
	if err != nil {
		return strings.ToUpper(strings.NewReplacer("-", "", "{", "", "}", "").Replace(strings.TrimSpace(id)))
	}
	return strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
}

// DecodeShortID turns a ShortID (or a dashed / braced uuid) back into an item id.
func DecodeShortID(s string) (string, error) {
	s = strings.Trim(strings.TrimSpace(s), "{}")
	if s == "" {
		return "", fmt.Errorf("empty short id")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid short id %q: %w", s, err)
	}
	return u.String(), nil
}

// IsShortID reports whether s looks like a 32 hex-character ShortID.
func IsShortID(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
