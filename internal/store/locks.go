package store

import (
	"github.com/im7mortal/kmutex"
)

// Lock keys. When several are held they are taken in this order:
// owner, profile, question, popup, username, seq.
func ownerKey(identityID string) string { return "owner:" + identityID }
func profileKey(id string) string       { return "profile:" + id }
func questionKey(id string) string      { return "question:" + id }
func popupKey(id string) string         { return "popup:" + id }
func usernameKey(name string) string    { return "username:" + name }

const (
	seqRealKey = "seq:real"
	seqBotKey  = "seq:bot"
)

// entityLocks serializes mutations per entity key.
type entityLocks struct {
	km *kmutex.Kmutex
}

func newEntityLocks() *entityLocks {
	return &entityLocks{km: kmutex.New()}
}

// lock takes every key in order and returns a function releasing them in
// reverse. Empty keys are skipped.
func (l *entityLocks) lock(keys ...string) func() {
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		l.km.Lock(k)
		held = append(held, k)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.km.Unlock(held[i])
		}
	}
}
