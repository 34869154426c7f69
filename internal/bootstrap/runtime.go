// Package bootstrap wires the process-wide runtime shared by the server and
// the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zeelink/internal/cache"
	"zeelink/internal/config"
	"zeelink/internal/database"
	"zeelink/internal/featureflags"
	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/repository"
	"zeelink/internal/seed"
	"zeelink/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo adds the starter questions and the demo profile.
	SeedDemo bool
}

// Runtime is everything a process needs to serve store operations.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Deps     store.Deps
	Store    *store.Store
	Sessions *store.Sessions
	Admin    *models.Identity
}

// InitRuntime connects to DB and Redis, ensures the bootstrap admin and
// loads the store.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	return NewRuntime(ctx, cfg, db, cache.GetClient(), opts)
}

// NewRuntime builds a Runtime over existing connections. rdb may be nil.
func NewRuntime(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, opts Options) (*Runtime, error) {
	deps := store.Deps{
		Identities: repository.NewIdentityRepository(db),
		Profiles:   repository.NewProfileRepository(db),
		Questions:  repository.NewQuestionRepository(db),
		Popups:     repository.NewPopupRepository(db),
		Restorer:   repository.NewSnapshotRestorer(db),
		Flags:      featureflags.NewManager(cfg.FeatureFlags),
	}
	if rdb != nil {
		deps.Views = cache.NewPopupViews(rdb)
	}

	admin, err := ensureBootstrapAdmin(ctx, cfg, deps.Identities)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	st, err := store.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		// The store serves an empty mirror until the next reload.
		middleware.Logger.WarnContext(ctx, "initial store load failed", slog.String("error", err.Error()))
	}

	if opts.SeedDemo {
		if _, err := seed.NewSeeder(deps, st).Run(ctx, seed.Options{Questions: true, DemoProfile: true}); err != nil {
			st.Teardown()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	sessions, err := store.NewSessions(st, store.SessionConfig{
		Secret: cfg.JWTSecret,
		TTL:    time.Duration(cfg.SessionTTLHours) * time.Hour,
	}, cache.NewTokenBlacklist(rdb))
	if err != nil {
		st.Teardown()
		return nil, err
	}

	return &Runtime{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Deps:     deps,
		Store:    st,
		Sessions: sessions,
		Admin:    admin,
	}, nil
}

// Close drains the store and releases connections.
func (r *Runtime) Close() {
	r.Store.Teardown()
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// ensureBootstrapAdmin creates or promotes the admin named by
// BOOTSTRAP_ADMIN_EMAIL. It returns nil when none is configured.
func ensureBootstrapAdmin(ctx context.Context, cfg *config.Config, identities repository.IdentityRepository) (*models.Identity, error) {
	if cfg == nil || identities == nil {
		return nil, nil
	}
	email := strings.TrimSpace(strings.ToLower(cfg.BootstrapAdminEmail))
	if email == "" {
		return nil, nil
	}
	if cfg.BootstrapAdminPassword == "" {
		return nil, fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be set when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	name := strings.TrimSpace(cfg.BootstrapAdminName)
	if name == "" {
		name = "Administrator"
	}

	existing, err := identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapAdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		admin := &models.Identity{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         name,
			PasswordHash: string(hashedPassword),
			Role:         models.RoleAdmin,
		}
		if err := identities.Insert(ctx, admin); err != nil {
			return nil, err
		}
		middleware.Logger.InfoContext(ctx, "bootstrap admin created", slog.String("email", email))
		return admin, nil
	}

	updates := map[string]any{}
	if existing.Role != models.RoleAdmin {
		updates["role"] = models.RoleAdmin
	}
	if existing.IsBanned {
		updates["is_banned"] = false
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := identities.Update(ctx, existing.ID, updates); err != nil {
			return nil, err
		}
		existing.Role = models.RoleAdmin
		existing.IsBanned = false
		middleware.Logger.InfoContext(ctx, "bootstrap admin promoted", slog.String("email", email))
	}
	return existing, nil
}
