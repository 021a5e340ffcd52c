// Package owners maps channels to the user who gets reminded about them.
package owners

import (
	"regexp"
	"strings"
)

// Slack conversation IDs: C (public), G (private/legacy group), D (DM).
var reChannelID = regexp.MustCompile(`^[CGD][A-Z0-9]{6,}$`)

// Table holds two immutable lookups. IDs are checked before names.
type Table struct {
	byID   map[string]string
	byName map[string]string
}

// New splits a mixed "id-or-name -> owner" mapping into the two tables.
// Names may be written with or without a leading '#'. Empty keys or owners are ignored.
func New(mapping map[string]string) Table {
	t := Table{byID: map[string]string{}, byName: map[string]string{}}
	for k, owner := range mapping {
		k = strings.TrimSpace(k)
		owner = strings.TrimSpace(owner)
		if k == "" || owner == "" {
			continue
		}
		if IsChannelID(k) {
			t.byID[k] = owner
			continue
		}
		t.byName[normalizeName(k)] = owner
	}
	return t
}

// IsChannelID reports whether s has the shape of a Slack conversation ID.
func IsChannelID(s string) bool { return reChannelID.MatchString(s) }

// Resolve returns the owner for a channel, or ("", false) if none is configured.
func (t Table) Resolve(channelID, channelName string) (string, bool) {
	if owner, ok := t.byID[strings.TrimSpace(channelID)]; ok {
		return owner, true
	}
	if name := normalizeName(channelName); name != "" {
		if owner, ok := t.byName[name]; ok {
			return owner, true
		}
	}
	return "", false
}

// Len is the number of configured entries across both tables.
func (t Table) Len() int { return len(t.byID) + len(t.byName) }

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}
