// Package store holds the in-memory mirror of profiles, questions and popups,
// the mutators that write through to the database, and per-client sessions.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zeelink/internal/config"
	"zeelink/internal/directory"
	"zeelink/internal/featureflags"
	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/moderation"
	"zeelink/internal/observability"
	"zeelink/internal/repository"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by mutations started after Teardown.
var ErrClosed = errors.New("store is closed")

// Deps are the collaborators a Store is built from. Identities, Profiles,
// Questions, Popups and Restorer are required.
type Deps struct {
	Identities repository.IdentityRepository
	Profiles   repository.ProfileRepository
	Questions  repository.Records[models.Question]
	Popups     repository.Records[models.Popup]
	Restorer   repository.SnapshotRestorer

	// Policy defaults to the denylist plus MODERATION_DENYLIST.
	Policy moderation.Policy
	// Directory defaults to the embedded data set.
	Directory *directory.Directory
	Flags     *featureflags.Manager
	// Views defaults to an in-memory log.
	Views ViewLog
	// Now defaults to time.Now.
	Now func() time.Time
}

// Store is the collection store. Build it once with New, call Init before
// serving and Teardown on shutdown.
type Store struct {
	identities repository.IdentityRepository
	profiles   repository.ProfileRepository
	questions  repository.Records[models.Question]
	popups     repository.Records[models.Popup]
	restorer   repository.SnapshotRestorer

	policy    moderation.Policy
	dir       *directory.Directory
	flags     *featureflags.Manager
	views     ViewLog
	now       func() time.Time
	uidPrefix string
	baseURL   string

	locks    *entityLocks
	inflight tracker

	mu        sync.RWMutex
	profileM  []*models.Profile
	questionM []*models.Question
	popupM    []*models.Popup
	loadedAt  time.Time
}

// New wires a Store. It does not touch the database; call Init for that.
func New(cfg *config.Config, deps Deps) (*Store, error) {
	if deps.Identities == nil || deps.Profiles == nil || deps.Questions == nil || deps.Popups == nil || deps.Restorer == nil {
		return nil, fmt.Errorf("store: identities, profiles, questions, popups and restorer are required")
	}
	s := &Store{
		identities: deps.Identities,
		profiles:   deps.Profiles,
		questions:  deps.Questions,
		popups:     deps.Popups,
		restorer:   deps.Restorer,
		policy:     deps.Policy,
		dir:        deps.Directory,
		flags:      deps.Flags,
		views:      deps.Views,
		now:        deps.Now,
		uidPrefix:  cfg.UIDPrefix,
		baseURL:    cfg.PublicBaseURL,
		locks:      newEntityLocks(),
	}
	if s.policy == nil {
		s.policy = moderation.NewDenylist(moderation.ParseWords(cfg.ModerationDenylist)...)
	}
	if s.dir == nil {
		s.dir = directory.Default()
	}
	if s.views == nil {
		s.views = NewMemoryViewLog()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.uidPrefix == "" {
		s.uidPrefix = "022026"
	}
	return s, nil
}

// Init fills the mirror. On error the store stays usable with an empty
// mirror and the error is returned for the caller to log.
func (s *Store) Init(ctx context.Context) error {
	return s.Load(ctx)
}

// Teardown waits for background mutations and refuses new ones.
func (s *Store) Teardown() {
	s.inflight.close()
}

// Directory returns the geography the store validates locations against.
func (s *Store) Directory() *directory.Directory {
	return s.dir
}

// Flags returns the feature flag manager, which may be nil.
func (s *Store) Flags() *featureflags.Manager {
	return s.flags
}

type collections struct {
	profiles  []models.Profile
	questions []models.Question
	popups    []models.Popup
}

func (s *Store) fetchAll(ctx context.Context) (*collections, error) {
	var out collections
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.profiles, err = s.profiles.Get(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		out.questions, err = s.questions.Get(gctx, nil)
		return err
	})
	g.Go(func() error {
		var err error
		out.popups, err = s.popups.Get(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Load replaces the mirror with the remote collections. On failure the
// previous mirror is kept.
func (s *Store) Load(ctx context.Context) error {
	span, ctx := observability.NewSpan(ctx, "store.Load")
	defer span.End()

	all, err := s.fetchAll(ctx)
	if err != nil {
		span.SetError(err)
		middleware.Logger.WarnContext(ctx, "store load failed, keeping cached collections",
			slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	s.profileM = pointers(all.profiles)
	s.questionM = pointers(all.questions)
	s.popupM = pointers(all.popups)
	s.loadedAt = s.now()
	s.mu.Unlock()

	middleware.Logger.InfoContext(ctx, "store loaded",
		slog.Int("profiles", len(all.profiles)),
		slog.Int("questions", len(all.questions)),
		slog.Int("popups", len(all.popups)))
	return nil
}

// Reload is Load under the name callers use for a refresh.
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// LoadedAt returns when the mirror was last filled from the database.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func pointers[T any](rows []T) []*T {
	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

// replaceByID swaps the element with v's id for v, or appends v.
func replaceByID[T any](list []*T, v *T, id func(*T) string) []*T {
	key := id(v)
	for i, cur := range list {
		if id(cur) == key {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func removeByID[T any](list []*T, key string, id func(*T) string) []*T {
	for i, cur := range list {
		if id(cur) == key {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func findByID[T any](list []*T, key string, id func(*T) string) *T {
	for _, cur := range list {
		if id(cur) == key {
			return cur
		}
	}
	return nil
}

func profileID(p *models.Profile) string   { return p.ID }
func questionID(q *models.Question) string { return q.ID }
func popupID(p *models.Popup) string       { return p.ID }

// record counts a finished mutation and passes the outcome through.
func record(op string, o Outcome) Outcome {
	label := "noop"
	switch {
	case o.Err != nil:
		label = "error"
	case o.Applied:
		label = "applied"
	}
	observability.StoreMutations.WithLabelValues(op, label).Inc()
	return o
}

func requireActor(actor *models.Identity) error {
	if actor == nil {
		return models.NewUnauthorizedError("Authentication required")
	}
	if actor.IsBanned {
		return models.NewForbiddenError("Account is banned")
	}
	return nil
}

func requireAdmin(actor *models.Identity) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}
