// Package featureflags evaluates runtime feature toggles from configuration.
package featureflags

import (
	"hash/fnv"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Known flags.
const (
	// UniqueLikes makes likes idempotent per liker. It is evaluated against
	// the liked profile's id, so every profile behaves consistently.
	UniqueLikes = "unique_likes"
	// AvatarUpload enables the avatar upload endpoint.
	AvatarUpload = "avatar_upload"
)

// rule is a parsed flag value: the share of subjects, 0 to 100, it is on for.
// Anything unparseable is 0.
type rule struct {
	raw     string
	percent int
}

func parseRule(value string) rule {
	r := rule{raw: value}
	switch value {
	case "on", "true", "1":
		r.percent = 100
	case "off", "false", "0":
	default:
		if n, ok := strings.CutSuffix(value, "%"); ok {
			if pct, err := strconv.Atoi(n); err == nil {
				r.percent = min(max(pct, 0), 100)
			}
		}
	}
	return r
}

// Manager holds flags parsed from a "name=value,name=value" list, where a
// value is on/true/1, off/false/0 or a rollout such as 25%.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Entries without a name or value are skipped.
func NewManager(raw string) *Manager {
	m := &Manager{rules: map[string]rule{}}
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		name, value = normalize(name), normalize(value)
		if ok && name != "" && value != "" {
			m.rules[name] = parseRule(value)
		}
	}
	return m
}

// Enabled reports whether name is on for subject, usually an identity or
// profile id. Partial rollouts bucket subjects by hash, so the answer is
// stable per subject, and an empty subject is never in a partial rollout.
func (m *Manager) Enabled(name, subject string) bool {
	if m == nil {
		return false
	}
	r := m.rules[normalize(name)]
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0 || subject == "":
		return false
	}
	return bucket(normalize(name), subject) < r.percent
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m.rules))
}

// Raw returns the configured values as written, after normalization.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for name, r := range m.rules {
		out[name] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for subject.
func (m *Manager) Snapshot(subject string) map[string]bool {
	out := map[string]bool{}
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, subject)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name, subject string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + subject))
	return int(h.Sum32() % 100)
}
