package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"zeelink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) popup(t *testing.T, admin *models.Identity, title string, freq models.PopupFrequency) *models.Popup {
	t.Helper()
	p, o := f.st.UpsertPopup(f.ctx, admin, models.Popup{Title: title, IsActive: true, Frequency: freq})
	require.NoError(t, o.Err)
	return p
}

func popupIDs(list []*models.Popup) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.ID
	}
	return out
}

func TestUpsertPopup(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)

	_, o := f.st.UpsertPopup(f.ctx, f.user(t), models.Popup{Title: "Sale"})
	assert.True(t, models.HasCode(o.Err, models.CodeForbidden))
	_, o = f.st.UpsertPopup(f.ctx, admin, models.Popup{Title: " "})
	assert.True(t, models.HasCode(o.Err, models.CodeValidation))
	_, o = f.st.UpsertPopup(f.ctx, admin, models.Popup{Title: "Sale", Frequency: "hourly"})
	assert.True(t, models.HasCode(o.Err, models.CodeValidation))
	_, o = f.st.UpsertPopup(f.ctx, admin, models.Popup{Title: "Sale", LinkURL: "ftp://example.com"})
	assert.True(t, models.HasCode(o.Err, models.CodeValidation))

	p, o := f.st.UpsertPopup(f.ctx, admin, models.Popup{Title: " Songkran sale ", LinkURL: "https://zeelink.site/sale"})
	require.NoError(t, o.Err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Songkran sale", p.Title)
	assert.Equal(t, models.FrequencyAlways, p.Frequency)

	p.IsActive = true
	p.Frequency = models.FrequencyOnceDaily
	updated, o := f.st.UpsertPopup(f.ctx, admin, *p)
	require.NoError(t, o.Err)
	assert.Equal(t, p.ID, updated.ID)

	stored, err := f.st.popups.GetOne(f.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Equal(t, models.FrequencyOnceDaily, stored.Frequency)
	assert.Len(t, f.st.ListPopups(), 1)

	_, o = f.st.UpsertPopup(f.ctx, admin, models.Popup{ID: "missing", Title: "x"})
	assert.True(t, models.HasCode(o.Err, models.CodeNotFound))
}

func TestDeletePopup(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	p := f.popup(t, admin, "Bye", models.FrequencyAlways)

	o := f.st.DeletePopup(f.ctx, nil, p.ID)
	assert.True(t, models.HasCode(o.Err, models.CodeUnauthorized))

	require.NoError(t, f.st.DeletePopup(f.ctx, admin, p.ID).Err)
	assert.Empty(t, f.st.ListPopups())
	_, err := f.st.popups.GetOne(f.ctx, p.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	o = f.st.DeletePopup(f.ctx, admin, p.ID)
	assert.True(t, models.HasCode(o.Err, models.CodeNotFound))
}

func TestActivePopups_Frequencies(t *testing.T) {
	f := newFixture(t)
	admin := f.admin(t)
	always := f.popup(t, admin, "always", models.FrequencyAlways)
	once := f.popup(t, admin, "once", models.FrequencyOnce)
	daily := f.popup(t, admin, "daily", models.FrequencyOnceDaily)
	_, o := f.st.UpsertPopup(f.ctx, admin, models.Popup{Title: "off", Frequency: models.FrequencyAlways})
	require.NoError(t, o.Err)

	// 23:30 in Bangkok.
	night := time.Date(2026, 4, 13, 16, 30, 0, 0, time.UTC)

	got := f.st.ActivePopups(f.ctx, "viewer-1", night)
	assert.ElementsMatch(t, []string{always.ID, once.ID, daily.ID}, popupIDs(got))

	got = f.st.ActivePopups(f.ctx, "viewer-1", night.Add(20*time.Minute))
	assert.ElementsMatch(t, []string{always.ID}, popupIDs(got))

	// 00:05 the next Bangkok day, though still the same UTC day.
	got = f.st.ActivePopups(f.ctx, "viewer-1", night.Add(35*time.Minute))
	assert.ElementsMatch(t, []string{always.ID, daily.ID}, popupIDs(got))

	got = f.st.ActivePopups(f.ctx, "viewer-2", night)
	assert.ElementsMatch(t, []string{always.ID, once.ID, daily.ID}, popupIDs(got))

	got = f.st.ActivePopups(f.ctx, "", night)
	assert.ElementsMatch(t, []string{always.ID}, popupIDs(got))
}

type brokenViews struct{}

func (brokenViews) LastSeen(context.Context, string, string) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("redis down")
}

func (brokenViews) MarkSeen(context.Context, string, string, time.Time) error {
	return errors.New("redis down")
}

func TestActivePopups_ViewLogFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Views = brokenViews{} })
	admin := f.admin(t)
	always := f.popup(t, admin, "always", models.FrequencyAlways)
	f.popup(t, admin, "once", models.FrequencyOnce)

	got := f.st.ActivePopups(f.ctx, "viewer", time.Now())
	assert.Equal(t, []string{always.ID}, popupIDs(got))
}

func TestDue(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, bangkok)
	tests := []struct {
		name string
		freq models.PopupFrequency
		last time.Time
		seen bool
		now  time.Time
		want bool
	}{
		{"never seen", models.FrequencyOnce, time.Time{}, false, base, true},
		{"once seen", models.FrequencyOnce, base, true, base.AddDate(1, 0, 0), false},
		{"daily same day", models.FrequencyOnceDaily, base, true, base.Add(13 * time.Hour), false},
		{"daily next day", models.FrequencyOnceDaily, base, true, base.Add(14 * time.Hour), true},
		{"always", models.FrequencyAlways, base, true, base, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, due(tt.freq, tt.last, tt.seen, tt.now))
		})
	}
}
