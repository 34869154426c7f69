// Package moderation classifies free text submitted to the question board.
package moderation

import (
	"strings"

	"zeelink/internal/models"
)

// Policy decides the moderation status of a piece of text.
type Policy interface {
	Classify(text string) models.QuestionStatus
}

// DefaultWords is the built-in denylist.
var DefaultWords = []string{
	"กู", "มึง", "สัส", "เหี้ย", "ควย", "เย็ด", "fuck", "shit", "เลว", "ชั่ว",
}

// Denylist rejects text containing any listed word, ignoring case.
type Denylist struct {
	words []string
}

// NewDenylist returns a Denylist over DefaultWords plus extra.
// Blank entries in extra are ignored.
func NewDenylist(extra ...string) *Denylist {
	d := &Denylist{}
	seen := make(map[string]struct{})
	for _, w := range append(append([]string(nil), DefaultWords...), extra...) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		d.words = append(d.words, w)
	}
	return d
}

// Classify returns QuestionRejected when text contains a denylisted word and
// QuestionApproved otherwise. It never returns QuestionPending.
func (d *Denylist) Classify(text string) models.QuestionStatus {
	if d.Match(text) != "" {
		return models.QuestionRejected
	}
	return models.QuestionApproved
}

// Match returns the first denylisted word found in text, or "".
func (d *Denylist) Match(text string) string {
	lower := strings.ToLower(text)
	for _, w := range d.words {
		if strings.Contains(lower, w) {
			return w
		}
	}
	return ""
}

// Words returns a copy of the active list.
func (d *Denylist) Words() []string {
	return append([]string(nil), d.words...)
}

// ParseWords splits a comma separated word list such as MODERATION_DENYLIST.
func ParseWords(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if w := strings.TrimSpace(part); w != "" {
			out = append(out, w)
		}
	}
	return out
}
