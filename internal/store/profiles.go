package store

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"zeelink/internal/featureflags"
	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/observability"
	"zeelink/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ProfileInput is what an owner submits when saving their profile. A nil
// Theme keeps the current theme, or the default one for a new profile.
type ProfileInput struct {
	Username      string          `json:"username"`
	DisplayName   string          `json:"display_name"`
	PhotoURL      string          `json:"photo_url"`
	Bio           string          `json:"bio"`
	Tags          []string        `json:"tags"`
	Location      models.Location `json:"location"`
	ShowOnExplore bool            `json:"show_on_explore"`
	Theme         *models.Theme   `json:"theme"`
	Links         []models.Link   `json:"links"`
}

// MapPin is a visible profile placed on the map.
type MapPin struct {
	Profile *models.Profile `json:"profile"`
	Lat     float64         `json:"lat"`
	Lng     float64         `json:"lng"`
}

// ListVisibleProfiles returns copies of every profile shown on Explore, in
// mirror order.
func (s *Store) ListVisibleProfiles() []*models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Profile, 0, len(s.profileM))
	for _, p := range s.profileM {
		if p.ShowOnExplore {
			out = append(out, p.Clone())
		}
	}
	return out
}

// MapProfiles places every visible profile near its province centroid.
// Profiles without a known province are left off the map.
func (s *Store) MapProfiles(rng *rand.Rand) []MapPin {
	visible := s.ListVisibleProfiles()
	pins := make([]MapPin, 0, len(visible))
	for _, p := range visible {
		lat, lng, ok := s.dir.Place(p.Location.Province, rng)
		if !ok {
			continue
		}
		pins = append(pins, MapPin{Profile: p, Lat: lat, Lng: lng})
	}
	return pins
}

// ProfileByUsername finds a profile by its public username, falling back to
// the database on a mirror miss.
func (s *Store) ProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	name := models.NormalizeUsername(username)
	s.mu.RLock()
	for _, p := range s.profileM {
		if p.Username == name {
			out := p.Clone()
			s.mu.RUnlock()
			return out, nil
		}
	}
	s.mu.RUnlock()

	p, err := s.profiles.GetByUsername(ctx, name)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "profile lookup failed", slog.String("username", name), slog.String("error", err.Error()))
	}
	if p == nil {
		return nil, models.NewNotFoundError("Profile", name)
	}
	return s.adoptProfile(ctx, p.ID)
}

// ProfileOfOwner finds the profile owned by identityID.
func (s *Store) ProfileOfOwner(ctx context.Context, identityID string) (*models.Profile, error) {
	if p := s.mirrorProfileOfOwner(identityID); p != nil {
		return p, nil
	}
	p, err := s.profiles.GetByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, models.NewNotFoundError("Profile", identityID)
	}
	return s.adoptProfile(ctx, p.ID)
}

// adoptProfile brings a profile found in the database into the mirror. The
// row is read again under the profile lock, and a mirror entry that is
// already there wins, so a concurrent like or delete is never undone.
func (s *Store) adoptProfile(ctx context.Context, id string) (*models.Profile, error) {
	unlock := s.locks.lock(profileKey(id))
	defer unlock()

	s.mu.RLock()
	cached := findByID(s.profileM, id, profileID)
	s.mu.RUnlock()
	if cached != nil {
		return cached.Clone(), nil
	}

	p, err := s.profiles.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}
	s.putProfile(p.Clone())
	return p, nil
}

func (s *Store) mirrorProfileOfOwner(identityID string) *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profileM {
		if p.IdentityID == identityID {
			return p.Clone()
		}
	}
	return nil
}

// currentProfile returns a copy of the profile with id from the mirror or
// the database. Callers hold the profile lock.
func (s *Store) currentProfile(ctx context.Context, id string) (*models.Profile, error) {
	s.mu.RLock()
	p := findByID(s.profileM, id, profileID)
	s.mu.RUnlock()
	if p != nil {
		return p.Clone(), nil
	}
	return s.profiles.GetOne(ctx, id)
}

func (s *Store) putProfile(p *models.Profile) {
	s.mu.Lock()
	s.profileM = replaceByID(s.profileM, p, profileID)
	s.mu.Unlock()
}

func (s *Store) dropProfile(id string) {
	s.mu.Lock()
	s.profileM = removeByID(s.profileM, id, profileID)
	s.mu.Unlock()
}

// ShareURL is the public address of a profile.
func (s *Store) ShareURL(p *models.Profile) string {
	return s.baseURL + "/" + p.Username
}

// UpsertProfile creates or updates the actor's own profile. The username is
// fixed once set and must be unused; the UID is assigned on first save.
func (s *Store) UpsertProfile(ctx context.Context, actor *models.Identity, in ProfileInput) (*models.Profile, Outcome) {
	span, ctx := observability.NewSpan(ctx, "store.UpsertProfile")
	defer span.End()

	p, o := s.upsertProfile(ctx, actor, in)
	span.SetError(o.Err)
	return p, record("upsert_profile", o)
}

func (s *Store) upsertProfile(ctx context.Context, actor *models.Identity, in ProfileInput) (*models.Profile, Outcome) {
	if err := requireActor(actor); err != nil {
		return nil, failed(err)
	}
	unlockOwner := s.locks.lock(ownerKey(actor.ID))
	defer unlockOwner()

	existing, err := s.ProfileOfOwner(ctx, actor.ID)
	if err != nil && !models.HasCode(err, models.CodeNotFound) {
		return nil, failed(wrapRemote("load profile", err))
	}

	var pKey string
	if existing != nil {
		pKey = profileKey(existing.ID)
	}
	unlockProfile := s.locks.lock(pKey)
	defer unlockProfile()
	if existing != nil {
		// Likes and clicks may have moved while waiting for the lock.
		if existing, err = s.currentProfile(ctx, existing.ID); err != nil {
			return nil, failed(wrapRemote("load profile", err))
		}
	}

	next, err := s.buildProfile(actor, existing, in)
	if err != nil {
		return nil, failed(err)
	}

	var nameKey string
	if existing == nil || existing.Username == "" {
		nameKey = usernameKey(next.Username)
	}
	var seqKey string
	if next.UID == "" {
		seqKey = seqRealKey
	}
	unlockRest := s.locks.lock(nameKey, seqKey)
	defer unlockRest()

	if nameKey != "" {
		if err := s.ensureUsernameFree(ctx, next.Username, next.ID); err != nil {
			return nil, failed(err)
		}
	}
	if seqKey != "" {
		uid, err := s.nextUID(ctx, false)
		if err != nil {
			return nil, failed(err)
		}
		next.UID = uid
	}

	if existing == nil {
		if err := s.profiles.Insert(ctx, next); err != nil {
			return nil, failed(wrapRemote("insert profile", err))
		}
	} else {
		next.UpdatedAt = s.now()
		if err := s.profiles.Update(ctx, next.ID, profileFields(next)); err != nil {
			return nil, failed(wrapRemote("update profile", err))
		}
	}

	s.putProfile(next.Clone())
	middleware.Logger.InfoContext(ctx, "profile saved",
		slog.String("profile_id", next.ID), slog.String("uid", next.UID), slog.Bool("created", existing == nil))
	return next, applied()
}

// buildProfile validates in and merges it over existing.
func (s *Store) buildProfile(actor *models.Identity, existing *models.Profile, in ProfileInput) (*models.Profile, error) {
	var next *models.Profile
	if existing != nil {
		next = existing.Clone()
	} else {
		next = &models.Profile{
			ID:         uuid.NewString(),
			IdentityID: actor.ID,
			Theme:      models.DefaultTheme(),
		}
	}

	username := models.NormalizeUsername(in.Username)
	switch {
	case next.Username != "" && username != "" && username != next.Username:
		return nil, models.NewValidationError("Username cannot be changed once set")
	case next.Username == "":
		if username == "" {
			return nil, models.NewValidationError("Username is required")
		}
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		next.Username = username
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if err := validation.ValidateName(displayName); err != nil {
		return nil, models.NewValidationError("Display " + err.Error())
	}
	bio := strings.TrimSpace(in.Bio)
	if err := validation.ValidateBio(bio); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateTags(in.Tags); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLinks(in.Links); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	theme := next.Theme
	if in.Theme != nil {
		theme = *in.Theme
	}
	if err := validation.ValidateTheme(theme); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	loc, err := s.dir.Resolve(in.Location)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	next.DisplayName = displayName
	next.Bio = bio
	next.Tags = append(models.StringList(nil), in.Tags...)
	next.Location = loc
	next.ShowOnExplore = in.ShowOnExplore
	next.Theme = theme
	next.PhotoURL = strings.TrimSpace(in.PhotoURL)
	if next.PhotoURL == "" {
		next.PhotoURL = actor.PhotoURL
	}
	next.Links = mergeLinks(next.Links, in.Links)
	return next, nil
}

// mergeLinks takes the submitted order and content but keeps click counts,
// which only RecordLinkClick may change.
func mergeLinks(current models.LinkList, submitted []models.Link) models.LinkList {
	clicks := make(map[string]int64, len(current))
	for _, l := range current {
		clicks[l.ID] = l.Clicks
	}
	out := make(models.LinkList, 0, len(submitted))
	for _, l := range submitted {
		l.Title = strings.TrimSpace(l.Title)
		l.URL = strings.TrimSpace(l.URL)
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.Clicks = clicks[l.ID]
		out = append(out, l)
	}
	return out
}

func (s *Store) ensureUsernameFree(ctx context.Context, username, selfID string) error {
	s.mu.RLock()
	for _, p := range s.profileM {
		if p.Username == username && p.ID != selfID {
			s.mu.RUnlock()
			return models.NewConflictError("Username is already taken")
		}
	}
	s.mu.RUnlock()

	other, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return wrapRemote("check username", err)
	}
	if other != nil && other.ID != selfID {
		return models.NewConflictError("Username is already taken")
	}
	return nil
}

// nextUID computes the next sequence number as max(count, highest) + 1 over
// the existing real or simulated UIDs. Callers hold the matching seq lock
// until the new UID is written.
func (s *Store) nextUID(ctx context.Context, simulated bool) (string, error) {
	prefix, n, err := s.nextSeq(ctx, simulated)
	if err != nil {
		return "", err
	}
	return prefix + strconv.Itoa(n), nil
}

func (s *Store) nextSeq(ctx context.Context, simulated bool) (string, int, error) {
	uids, err := s.profiles.UIDs(ctx, simulated)
	if err != nil {
		return "", 0, wrapRemote("list uids", err)
	}
	prefix := s.uidPrefix
	if simulated {
		prefix = botUIDPrefix
	}
	highest := 0
	for _, uid := range uids {
		n, err := strconv.Atoi(strings.TrimPrefix(uid, prefix))
		if err == nil && strings.HasPrefix(uid, prefix) && n > highest {
			highest = n
		}
	}
	return prefix, max(len(uids), highest) + 1, nil
}

const botUIDPrefix = "0"

func profileFields(p *models.Profile) map[string]any {
	return map[string]any{
		"username":               p.Username,
		"uid":                    p.UID,
		"display_name":           p.DisplayName,
		"photo_url":              p.PhotoURL,
		"bio":                    p.Bio,
		"tags":                   p.Tags,
		"region":                 p.Location.Region,
		"province":               p.Location.Province,
		"district":               p.Location.District,
		"sub_district":           p.Location.SubDistrict,
		"postal_code":            p.Location.PostalCode,
		"show_on_explore":        p.ShowOnExplore,
		"theme_background_color": p.Theme.BackgroundColor,
		"theme_text_color":       p.Theme.TextColor,
		"theme_button_color":     p.Theme.ButtonColor,
		"theme_font_family":      p.Theme.FontFamily,
		"theme_layout":           p.Theme.Layout,
		"links":                  p.Links,
	}
}

// wrapRemote keeps AppErrors from the repository and wraps anything else.
func wrapRemote(op string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewRemoteFailure(op, err)
}

// LikeProfile adds one like from a signed-in identity to a profile. The same
// identity may like repeatedly unless the unique_likes flag is on for the
// profile. Owners cannot like their own profile.
func (s *Store) LikeProfile(ctx context.Context, actor *models.Identity, id string) Outcome {
	span, ctx := observability.NewSpan(ctx, "store.LikeProfile", attribute.String("profile.id", id))
	defer span.End()

	o := s.likeProfile(ctx, actor, id)
	span.SetError(o.Err)
	return record("like_profile", o)
}

func (s *Store) likeProfile(ctx context.Context, actor *models.Identity, id string) Outcome {
	if err := requireActor(actor); err != nil {
		return failed(err)
	}
	unlock := s.locks.lock(profileKey(id))
	defer unlock()

	cur, err := s.currentProfile(ctx, id)
	if err != nil {
		return failed(err)
	}
	if cur.IdentityID == actor.ID {
		return failed(models.NewForbiddenError("You cannot like your own profile"))
	}

	unique := s.flags.Enabled(featureflags.UniqueLikes, cur.ID)
	if unique && cur.LikedBy.Contains(actor.ID) {
		return noop()
	}

	prev := cur.Clone()
	cur.Likes++
	fields := map[string]any{"likes": cur.Likes}
	if unique {
		cur.LikedBy = append(cur.LikedBy, actor.ID)
		fields["liked_by"] = cur.LikedBy
	}

	// Optimistic: the mirror moves first and is rolled back if the write fails.
	s.putProfile(cur.Clone())
	if err := s.profiles.Update(ctx, id, fields); err != nil {
		s.putProfile(prev)
		return failed(wrapRemote("like profile", err))
	}
	return applied()
}

// RecordLinkClick counts one click on a profile link. It needs no identity.
func (s *Store) RecordLinkClick(ctx context.Context, id, linkID string) Outcome {
	unlock := s.locks.lock(profileKey(id))
	defer unlock()

	cur, err := s.currentProfile(ctx, id)
	if err != nil {
		return record("link_click", failed(err))
	}
	idx := -1
	for i := range cur.Links {
		if cur.Links[i].ID == linkID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return record("link_click", failed(models.NewNotFoundError("Link", linkID)))
	}
	cur.Links[idx].Clicks++
	if err := s.profiles.Update(ctx, id, map[string]any{"links": cur.Links}); err != nil {
		return record("link_click", failed(wrapRemote("record click", err)))
	}
	s.putProfile(cur)
	return record("link_click", applied())
}

// BanIdentity marks an identity banned and hides its profile from Explore.
func (s *Store) BanIdentity(ctx context.Context, actor *models.Identity, id string) Outcome {
	span, ctx := observability.NewSpan(ctx, "store.BanIdentity", attribute.String("identity.id", id))
	defer span.End()

	o := s.banIdentity(ctx, actor, id)
	span.SetError(o.Err)
	return record("ban_identity", o)
}

func (s *Store) banIdentity(ctx context.Context, actor *models.Identity, id string) Outcome {
	if err := requireAdmin(actor); err != nil {
		return failed(err)
	}
	if actor.ID == id {
		return failed(models.NewValidationError("Admins cannot ban themselves"))
	}
	unlock := s.locks.lock(ownerKey(id))
	defer unlock()

	if err := s.identities.Update(ctx, id, map[string]any{"is_banned": true}); err != nil {
		return failed(wrapRemote("ban identity", err))
	}

	p, err := s.ProfileOfOwner(ctx, id)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return applied()
		}
		return Outcome{Persisted: true, Err: wrapRemote("load profile", err)}
	}
	unlockProfile := s.locks.lock(profileKey(p.ID))
	defer unlockProfile()
	if err := s.profiles.Update(ctx, p.ID, map[string]any{"show_on_explore": false}); err != nil {
		return Outcome{Persisted: true, Err: wrapRemote("hide profile", err)}
	}
	if cur, err := s.currentProfile(ctx, p.ID); err == nil {
		cur.ShowOnExplore = false
		s.putProfile(cur)
	}
	middleware.Logger.InfoContext(ctx, "identity banned", slog.String("identity_id", id), slog.String("by", actor.ID))
	return applied()
}

// DeleteIdentity removes an identity and its profile. Questions it authored
// stay on the board under the author name.
func (s *Store) DeleteIdentity(ctx context.Context, actor *models.Identity, id string) Outcome {
	span, ctx := observability.NewSpan(ctx, "store.DeleteIdentity", attribute.String("identity.id", id))
	defer span.End()

	o := s.deleteIdentity(ctx, actor, id)
	span.SetError(o.Err)
	return record("delete_identity", o)
}

func (s *Store) deleteIdentity(ctx context.Context, actor *models.Identity, id string) Outcome {
	if err := requireAdmin(actor); err != nil {
		return failed(err)
	}
	if actor.ID == id {
		return failed(models.NewValidationError("Admins cannot delete themselves"))
	}
	unlock := s.locks.lock(ownerKey(id))
	defer unlock()

	if _, err := s.identities.GetOne(ctx, id); err != nil {
		return failed(wrapRemote("load identity", err))
	}

	p, err := s.ProfileOfOwner(ctx, id)
	switch {
	case err == nil:
		unlockProfile := s.locks.lock(profileKey(p.ID))
		err := s.profiles.Delete(ctx, p.ID)
		if err == nil {
			s.dropProfile(p.ID)
		}
		unlockProfile()
		if err != nil {
			return failed(wrapRemote("delete profile", err))
		}
	case !models.HasCode(err, models.CodeNotFound):
		return failed(wrapRemote("load profile", err))
	}

	if err := s.identities.Delete(ctx, id); err != nil {
		return Outcome{Applied: p != nil, Persisted: p != nil, Err: wrapRemote("delete identity", err)}
	}
	middleware.Logger.InfoContext(ctx, "identity deleted", slog.String("identity_id", id), slog.String("by", actor.ID))
	return applied()
}

// SetPhoto records a new photo URL on the actor's identity and, when it has
// one, on its profile.
func (s *Store) SetPhoto(ctx context.Context, actor *models.Identity, url string) (*models.Profile, Outcome) {
	p, o := s.setPhoto(ctx, actor, url)
	return p, record("set_photo", o)
}

func (s *Store) setPhoto(ctx context.Context, actor *models.Identity, url string) (*models.Profile, Outcome) {
	if err := requireActor(actor); err != nil {
		return nil, failed(err)
	}
	unlock := s.locks.lock(ownerKey(actor.ID))
	defer unlock()

	if err := s.identities.Update(ctx, actor.ID, map[string]any{"photo_url": url}); err != nil {
		return nil, failed(wrapRemote("update identity photo", err))
	}

	existing, err := s.ProfileOfOwner(ctx, actor.ID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, applied()
		}
		return nil, Outcome{Persisted: true, Err: wrapRemote("load profile", err)}
	}
	unlockProfile := s.locks.lock(profileKey(existing.ID))
	defer unlockProfile()
	cur, err := s.currentProfile(ctx, existing.ID)
	if err != nil {
		return nil, Outcome{Persisted: true, Err: wrapRemote("load profile", err)}
	}
	cur.PhotoURL = url
	cur.UpdatedAt = s.now()
	if err := s.profiles.Update(ctx, cur.ID, map[string]any{"photo_url": url}); err != nil {
		return nil, Outcome{Persisted: true, Err: wrapRemote("update profile photo", err)}
	}
	s.putProfile(cur.Clone())
	return cur, applied()
}
