package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/validation"

	"github.com/google/uuid"
)

// bangkok is the calendar once_daily popups roll over in. Thailand keeps
// UTC+7 all year.
var bangkok = time.FixedZone("ICT", 7*60*60)

// ViewLog remembers when a viewer last saw a popup.
type ViewLog interface {
	LastSeen(ctx context.Context, viewer, popupID string) (time.Time, bool, error)
	MarkSeen(ctx context.Context, viewer, popupID string, at time.Time) error
}

// MemoryViewLog is a process-local ViewLog.
type MemoryViewLog struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryViewLog returns an empty in-memory view log.
func NewMemoryViewLog() *MemoryViewLog {
	return &MemoryViewLog{seen: make(map[string]time.Time)}
}

func (l *MemoryViewLog) LastSeen(_ context.Context, viewer, popupID string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.seen[viewer+"\x00"+popupID]
	return t, ok, nil
}

func (l *MemoryViewLog) MarkSeen(_ context.Context, viewer, popupID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[viewer+"\x00"+popupID] = at
	return nil
}

// UpsertPopup creates a popup when p.ID is empty and updates it otherwise.
func (s *Store) UpsertPopup(ctx context.Context, actor *models.Identity, p models.Popup) (*models.Popup, Outcome) {
	out, o := s.upsertPopup(ctx, actor, p)
	return out, record("upsert_popup", o)
}

func (s *Store) upsertPopup(ctx context.Context, actor *models.Identity, p models.Popup) (*models.Popup, Outcome) {
	if err := requireAdmin(actor); err != nil {
		return nil, failed(err)
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Frequency == "" {
		p.Frequency = models.FrequencyAlways
	}
	if err := validation.ValidatePopup(p); err != nil {
		return nil, failed(models.NewValidationError(err.Error()))
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
		if err := s.popups.Insert(ctx, &p); err != nil {
			return nil, failed(wrapRemote("insert popup", err))
		}
	} else {
		unlock := s.locks.lock(popupKey(p.ID))
		defer unlock()
		cur, err := s.currentPopup(ctx, p.ID)
		if err != nil {
			return nil, failed(err)
		}
		p.CreatedAt = cur.CreatedAt
		p.UpdatedAt = s.now()
		if err := s.popups.Update(ctx, p.ID, map[string]any{
			"title":     p.Title,
			"image_url": p.ImageURL,
			"link_url":  p.LinkURL,
			"is_active": p.IsActive,
			"frequency": p.Frequency,
		}); err != nil {
			return nil, failed(wrapRemote("update popup", err))
		}
	}

	stored := p
	s.mu.Lock()
	s.popupM = replaceByID(s.popupM, &stored, popupID)
	s.mu.Unlock()
	middleware.Logger.InfoContext(ctx, "popup saved", slog.String("popup_id", p.ID), slog.Bool("active", p.IsActive))
	return &p, applied()
}

// DeletePopup removes a popup.
func (s *Store) DeletePopup(ctx context.Context, actor *models.Identity, id string) Outcome {
	if err := requireAdmin(actor); err != nil {
		return record("delete_popup", failed(err))
	}
	unlock := s.locks.lock(popupKey(id))
	defer unlock()

	if _, err := s.currentPopup(ctx, id); err != nil {
		return record("delete_popup", failed(err))
	}
	if err := s.popups.Delete(ctx, id); err != nil {
		return record("delete_popup", failed(wrapRemote("delete popup", err)))
	}
	s.mu.Lock()
	s.popupM = removeByID(s.popupM, id, popupID)
	s.mu.Unlock()
	return record("delete_popup", applied())
}

func (s *Store) currentPopup(ctx context.Context, id string) (*models.Popup, error) {
	s.mu.RLock()
	p := findByID(s.popupM, id, popupID)
	s.mu.RUnlock()
	if p != nil {
		cp := *p
		return &cp, nil
	}
	return s.popups.GetOne(ctx, id)
}

// ListPopups returns every popup, active or not.
func (s *Store) ListPopups() []*models.Popup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Popup, 0, len(s.popupM))
	for _, p := range s.popupM {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// ActivePopups returns the active popups viewer should see at now and
// records them as seen. always popups show on every call, once popups only
// the first time, and once_daily popups once per Bangkok calendar day. An
// empty viewer cannot be tracked and only gets always popups.
func (s *Store) ActivePopups(ctx context.Context, viewer string, now time.Time) []*models.Popup {
	var out []*models.Popup
	for _, p := range s.ListPopups() {
		if !p.IsActive {
			continue
		}
		if p.Frequency == models.FrequencyAlways {
			out = append(out, p)
			continue
		}
		if viewer == "" {
			continue
		}

		last, seen, err := s.views.LastSeen(ctx, viewer, p.ID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "popup view lookup failed", slog.String("popup_id", p.ID), slog.String("error", err.Error()))
			continue
		}
		if !due(p.Frequency, last, seen, now) {
			continue
		}
		if err := s.views.MarkSeen(ctx, viewer, p.ID, now); err != nil {
			middleware.Logger.WarnContext(ctx, "popup view record failed", slog.String("popup_id", p.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, p)
	}
	return out
}

func due(freq models.PopupFrequency, last time.Time, seen bool, now time.Time) bool {
	if !seen {
		return true
	}
	switch freq {
	case models.FrequencyOnce:
		return false
	case models.FrequencyOnceDaily:
		return bangkokDay(last) != bangkokDay(now)
	}
	return true
}

func bangkokDay(t time.Time) string {
	return t.In(bangkok).Format(time.DateOnly)
}
