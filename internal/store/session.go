package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/observability"
	"zeelink/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionKey is the key the remember-me token is kept under.
const SessionKey = "zeelink-session"

const (
	tokenIssuer   = "zeelink-api"
	tokenAudience = "zeelink-client"
)

// KeyValue is durable client-side storage for the remember-me token.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryKV is an in-process KeyValue.
type MemoryKV struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (kv *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *MemoryKV) Put(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

func (kv *MemoryKV) Remove(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.m, key)
	return nil
}

// Revoker blacklists token ids until they expire.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionConfig configures token signing and password hashing.
type SessionConfig struct {
	Secret string
	TTL    time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Sessions creates per-client sessions bound to one Store.
type Sessions struct {
	store   *Store
	secret  []byte
	ttl     time.Duration
	cost    int
	revoked Revoker
}

// NewSessions returns a session factory. revoked may be nil, in which case
// logout only forgets the token locally.
func NewSessions(st *Store, cfg SessionConfig, revoked Revoker) (*Sessions, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Sessions{store: st, secret: []byte(cfg.Secret), ttl: cfg.TTL, cost: cfg.BcryptCost, revoked: revoked}, nil
}

// HashPassword hashes a password with the configured cost.
func (m *Sessions) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Session is one client's signed-in state. It is safe for concurrent use.
type Session struct {
	m  *Sessions
	kv KeyValue

	mu       sync.Mutex
	identity *models.Identity
	profile  *models.Profile
	token    string
	claims   tokenClaims
}

type tokenClaims struct {
	subject   string
	id        string
	expiresAt time.Time
}

// New starts an empty session persisting to kv. kv may be nil.
func (m *Sessions) New(kv KeyValue) *Session {
	return &Session{m: m, kv: kv}
}

// Identity returns a copy of the signed-in identity, or nil.
func (s *Session) Identity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// Profile returns a copy of the signed-in identity's profile, or nil.
func (s *Session) Profile() *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// Token returns the current signed token, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// ExpiresAt returns when the current token expires.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claims.expiresAt
}

// Login checks credentials. Bad credentials and banned identities return
// false without an error; only a failed lookup returns an error. With
// remember set the token is persisted to the session's KeyValue.
func (s *Session) Login(ctx context.Context, email, password string, remember bool) (bool, error) {
	ok, err := s.login(ctx, email, password, remember)
	sessionEvent(ctx, "login", ok, err)
	return ok, err
}

func (s *Session) login(ctx context.Context, email, password string, remember bool) (bool, error) {
	identity, err := s.m.store.identities.GetByEmail(ctx, email)
	if err != nil {
		return false, wrapRemote("find identity", err)
	}
	if identity == nil || identity.IsBanned {
		return false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		return false, nil
	}
	return true, s.signIn(ctx, identity, remember)
}

// Register creates a user identity and signs it in. An email already in use
// returns false without an error. No profile is created.
func (s *Session) Register(ctx context.Context, email, password, name string) (bool, error) {
	ok, err := s.register(ctx, email, password, name)
	sessionEvent(ctx, "register", ok, err)
	return ok, err
}

func (s *Session) register(ctx context.Context, email, password, name string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if err := validation.ValidateEmail(email); err != nil {
		return false, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return false, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateName(name); err != nil {
		return false, models.NewValidationError(err.Error())
	}

	existing, err := s.m.store.identities.GetByEmail(ctx, email)
	if err != nil {
		return false, wrapRemote("find identity", err)
	}
	if existing != nil {
		return false, nil
	}

	hash, err := s.m.HashPassword(password)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	identity := &models.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.m.store.identities.Insert(ctx, identity); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			return false, nil
		}
		return false, wrapRemote("insert identity", err)
	}
	middleware.Logger.InfoContext(ctx, "identity registered", slog.String("identity_id", identity.ID))
	return true, s.signIn(ctx, identity, true)
}

func (s *Session) signIn(ctx context.Context, identity *models.Identity, remember bool) error {
	token, claims, err := s.m.issue(identity.ID)
	if err != nil {
		return models.NewInternalError(err)
	}
	profile := s.loadProfile(ctx, identity.ID)

	cp := *identity
	cp.PasswordHash = ""
	s.mu.Lock()
	s.identity = &cp
	s.profile = profile
	s.token = token
	s.claims = claims
	s.mu.Unlock()

	if remember && s.kv != nil {
		if err := s.kv.Put(ctx, SessionKey, token); err != nil {
			middleware.Logger.WarnContext(ctx, "persist session failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Session) loadProfile(ctx context.Context, identityID string) *models.Profile {
	p, err := s.m.store.ProfileOfOwner(ctx, identityID)
	if err != nil {
		if !models.HasCode(err, models.CodeNotFound) {
			middleware.Logger.WarnContext(ctx, "load session profile failed", slog.String("error", err.Error()))
		}
		return nil
	}
	return p
}

// Logout forgets the identity and the persisted token and revokes the token
// id. Revocation is best effort.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	claims := s.claims
	s.identity, s.profile, s.token, s.claims = nil, nil, "", tokenClaims{}
	s.mu.Unlock()

	if s.kv != nil {
		if err := s.kv.Remove(ctx, SessionKey); err != nil {
			return err
		}
	}
	if s.m.revoked != nil && claims.id != "" {
		if err := s.m.revoked.Revoke(ctx, claims.id, claims.expiresAt); err != nil {
			middleware.Logger.WarnContext(ctx, "token revocation failed", slog.String("error", err.Error()))
		}
	}
	sessionEvent(ctx, "logout", true, nil)
	return nil
}

// Restore resumes the session from the persisted token, if any.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.kv == nil {
		return false, nil
	}
	token, ok, err := s.kv.Get(ctx, SessionKey)
	if err != nil || !ok || token == "" {
		return false, err
	}
	return s.resume(ctx, token, "restore")
}

// Resume re-resolves token against the database. Any failure, including a
// revoked token, a deleted or banned identity, or an unreachable database,
// clears the session.
func (s *Session) Resume(ctx context.Context, token string) (bool, error) {
	return s.resume(ctx, token, "resume")
}

func (s *Session) resume(ctx context.Context, token, event string) (bool, error) {
	identity, claims, err := s.resolve(ctx, token)
	if err != nil || identity == nil {
		s.clear(ctx)
		sessionEvent(ctx, event, false, err)
		return false, err
	}

	profile := s.loadProfile(ctx, identity.ID)
	s.mu.Lock()
	s.identity = identity
	s.profile = profile
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	sessionEvent(ctx, event, true, nil)
	return true, nil
}

// resolve returns nil, nil for tokens that are simply not acceptable and an
// error only when the check itself could not run.
func (s *Session) resolve(ctx context.Context, token string) (*models.Identity, tokenClaims, error) {
	claims, err := s.m.parse(token)
	if err != nil {
		return nil, tokenClaims{}, nil
	}
	if s.m.revoked != nil {
		revoked, err := s.m.revoked.IsRevoked(ctx, claims.id)
		if err != nil {
			return nil, tokenClaims{}, models.NewRemoteFailure("check revocation", err)
		}
		if revoked {
			return nil, tokenClaims{}, nil
		}
	}
	identity, err := s.m.store.identities.GetOne(ctx, claims.subject)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, tokenClaims{}, nil
		}
		return nil, tokenClaims{}, wrapRemote("resolve identity", err)
	}
	if identity.IsBanned {
		return nil, tokenClaims{}, nil
	}
	identity.PasswordHash = ""
	return identity, claims, nil
}

func (s *Session) clear(ctx context.Context) {
	s.mu.Lock()
	s.identity, s.profile, s.token, s.claims = nil, nil, "", tokenClaims{}
	s.mu.Unlock()
	if s.kv != nil {
		_ = s.kv.Remove(ctx, SessionKey)
	}
}

// SaveProfile upserts the session identity's profile and keeps the session
// copy current.
func (s *Session) SaveProfile(ctx context.Context, in ProfileInput) (*models.Profile, Outcome) {
	p, o := s.m.store.UpsertProfile(ctx, s.Identity(), in)
	if o.Err == nil && p != nil {
		s.mu.Lock()
		s.profile = p.Clone()
		s.mu.Unlock()
	}
	return p, o
}

func (m *Sessions) issue(identityID string) (string, tokenClaims, error) {
	now := time.Now()
	c := tokenClaims{subject: identityID, id: uuid.NewString(), expiresAt: now.Add(m.ttl)}
	claims := jwt.MapClaims{
		"sub": identityID,
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": c.expiresAt.Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": c.id,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", tokenClaims{}, err
	}
	// Second precision, as encoded.
	c.expiresAt = time.Unix(c.expiresAt.Unix(), 0)
	return token, c, nil
}

var errInvalidToken = errors.New("invalid token")

func (m *Sessions) parse(tokenString string) (tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(tokenAudience), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return tokenClaims{}, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return tokenClaims{}, errInvalidToken
	}
	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if sub == "" || jti == "" || err != nil || exp == nil {
		return tokenClaims{}, errInvalidToken
	}
	return tokenClaims{subject: sub, id: jti, expiresAt: exp.Time}, nil
}

func sessionEvent(ctx context.Context, event string, ok bool, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !ok:
		result = "rejected"
	}
	observability.SessionEvents.WithLabelValues(event, result).Inc()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "session "+event+" failed", slog.String("error", err.Error()))
	}
}
