// Package featureflags switches optional GoraHrib features on, off, or on for
// a stable share of users.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// FriendPresence shows which friends are connected.
	FriendPresence = "friend_presence"
	// ForumPictures allows uploading new pictures with a forum post.
	ForumPictures = "forum_pictures"
)

// defaults apply to known flags that FEATURE_FLAGS does not mention.
var defaults = map[string]bool{
	FriendPresence: true,
	ForumPictures:  true,
}

// rollout is the share of users, 0 to 100, that see a flag.
type rollout int

// Manager evaluates flags configured as "friend_presence=off,forum_pictures=25%".
// Percentages pick users deterministically, so a user keeps the same answer
// across requests and restarts.
type Manager struct {
	rules map[string]rollout
}

// NewManager parses a comma-separated flag list. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]rollout)
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		name = normalize(name)
		r, ok := parseRollout(normalize(value))
		if name == "" || !ok {
			continue
		}
		rules[name] = r
	}
	return &Manager{rules: rules}
}

func parseRollout(v string) (rollout, bool) {
	switch v {
	case "on", "true", "1":
		return 100, true
	case "off", "false", "0":
		return 0, true
	}
	pct, found := strings.CutSuffix(v, "%")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return 0, false
	}
	return rollout(min(max(n, 0), 100)), true
}

// Enabled reports whether name is on for userID. A nil Manager and an
// unconfigured flag both fall back to the flag's default.
func (m *Manager) Enabled(name string, userID uint) bool {
	name = normalize(name)
	var (
		r  rollout
		ok bool
	)
	if m != nil {
		r, ok = m.rules[name]
	}
	if !ok {
		return defaults[name]
	}

	switch {
	case r <= 0:
		return false
	case r >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < int(r)
}

// Snapshot evaluates every known and configured flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(defaults))
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// Names lists known and configured flags in sorted order.
func (m *Manager) Names() []string {
	seen := make(map[string]bool, len(defaults))
	for name := range defaults {
		seen[name] = true
	}
	if m != nil {
		for name := range m.rules {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
