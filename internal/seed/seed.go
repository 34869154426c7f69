// Package seed provides database seeding utilities for development and demos.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/repository"
	"zeelink/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DemoEmail    = "somchai@demo.zeelink.local"
	DemoPassword = "Somchai!2026"
	DemoUsername = "somchai"
)

// Options configure a seeding run.
type Options struct {
	Questions   bool
	DemoProfile bool
	// Province and Simulated add simulated profiles when Simulated > 0.
	Province  string
	Simulated int
	// FastHash uses the minimum bcrypt cost for the demo password.
	FastHash bool
}

// Result counts what a run created.
type Result struct {
	Questions int
	Demo      *models.Profile
	Simulated int
}

// Seeder writes demo data through the repositories and the store.
type Seeder struct {
	identities repository.IdentityRepository
	profiles   repository.ProfileRepository
	questions  repository.Records[models.Question]
	st         *store.Store
	now        func() time.Time
}

// NewSeeder binds a Seeder to the store's repositories.
func NewSeeder(deps store.Deps, st *store.Store) *Seeder {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Seeder{
		identities: deps.Identities,
		profiles:   deps.Profiles,
		questions:  deps.Questions,
		st:         st,
		now:        now,
	}
}

// systemActor stands in for an operator running the seed command.
var systemActor = &models.Identity{ID: "system:seed", Name: "Seeder", Role: models.RoleAdmin}

// Run seeds everything opts asks for. Each part is idempotent.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{}

	if opts.DemoProfile {
		p, err := s.DemoProfile(ctx, opts.FastHash)
		if err != nil {
			return res, fmt.Errorf("failed to seed demo profile: %w", err)
		}
		res.Demo = p
		middleware.Logger.InfoContext(ctx, "demo profile ready",
			slog.String("username", p.Username), slog.String("uid", p.UID))
	}

	if opts.Questions {
		n, err := s.Questions(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to seed questions: %w", err)
		}
		res.Questions = n
		middleware.Logger.InfoContext(ctx, "questions seeded", slog.Int("created", n))
	}

	if opts.Simulated > 0 {
		created, o := s.st.SimulateProfiles(ctx, systemActor, opts.Province, opts.Simulated)
		res.Simulated = len(created)
		if o.Err != nil {
			return res, fmt.Errorf("failed to simulate profiles: %w", o.Err)
		}
		middleware.Logger.InfoContext(ctx, "simulated profiles created",
			slog.String("province", opts.Province), slog.Int("created", len(created)))
	}

	if err := s.st.Reload(ctx); err != nil {
		return res, fmt.Errorf("failed to reload store: %w", err)
	}
	return res, nil
}

// DemoProfile creates the demo member and their Bangkok profile, or returns
// the existing one.
func (s *Seeder) DemoProfile(ctx context.Context, fastHash bool) (*models.Profile, error) {
	identity, err := s.identities.GetByEmail(ctx, DemoEmail)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		identity, err = s.createDemoIdentity(ctx, fastHash)
		if err != nil {
			return nil, err
		}
	}

	existing, err := s.profiles.GetByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	theme := models.DefaultTheme()
	p, o := s.st.UpsertProfile(ctx, identity, store.ProfileInput{
		Username:    DemoUsername,
		DisplayName: "Somchai K.",
		PhotoURL:    identity.PhotoURL,
		Bio:         "Coffee lover in Bangkok",
		Tags:        []string{"Foodie"},
		Location: models.Location{
			Province:    "กรุงเทพมหานคร",
			District:    "เมือง",
			SubDistrict: "ตำบลในเมือง",
		},
		ShowOnExplore: true,
		Theme:         &theme,
	})
	if o.Err != nil {
		return nil, o.Err
	}

	if err := s.profiles.Update(ctx, p.ID, map[string]any{"likes": 25}); err != nil {
		return nil, err
	}
	p.Likes = 25
	return p, nil
}

func (s *Seeder) createDemoIdentity(ctx context.Context, fastHash bool) (*models.Identity, error) {
	cost := bcrypt.DefaultCost
	if fastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	identity := &models.Identity{
		ID:           uuid.NewString(),
		Email:        DemoEmail,
		Name:         "Somchai K.",
		PhotoURL:     "https://picsum.photos/200",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := s.identities.Insert(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

type initialQuestion struct {
	author string
	text   string
	votes  int64
	age    time.Duration
}

var initialQuestions = []initialQuestion{
	{"somchai", "อยากให้ Zeelink เพิ่มฟีเจอร์อะไรมากที่สุดครับ?", 1254, 0},
	{"admin", "ร้านกาแฟในเชียงใหม่ร้านไหนดี?", 856, 24 * time.Hour},
	{"user99", "ใครทำงานสาย Tech บ้างครับ เงินเดือนเท่าไหร่?", 500, 48 * time.Hour},
}

// Questions inserts the starter board questions that are not there yet and
// returns how many it created.
func (s *Seeder) Questions(ctx context.Context) (int, error) {
	now := s.now()
	created := 0
	for _, iq := range initialQuestions {
		existing, err := s.questions.Get(ctx, repository.Filter{"text": iq.text})
		if err != nil {
			return created, err
		}
		if len(existing) > 0 {
			continue
		}
		q := &models.Question{
			ID:         uuid.NewString(),
			AuthorName: iq.author,
			Text:       iq.text,
			Votes:      iq.votes,
			Status:     models.QuestionApproved,
			CreatedAt:  now.Add(-iq.age),
		}
		if err := s.questions.Insert(ctx, q); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
