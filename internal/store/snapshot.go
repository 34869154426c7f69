package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"zeelink/internal/middleware"
	"zeelink/internal/models"
	"zeelink/internal/observability"
)

// Exporter hands a finished blob to the operator, as a download or a file.
type Exporter interface {
	Export(ctx context.Context, name string, blob []byte) error
}

// FileExporter writes exports into Dir.
type FileExporter struct {
	Dir string
}

// Export writes blob to Dir/name.
func (e FileExporter) Export(_ context.Context, name string, blob []byte) error {
	if err := os.MkdirAll(e.Dir, 0o750); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.Dir, filepath.Base(name))
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// ExportSnapshot gathers all three collections. It reads from the database
// and falls back to the mirror, marked Source=local, when that read fails.
// It changes nothing.
func (s *Store) ExportSnapshot(ctx context.Context, actor *models.Identity) (*models.Snapshot, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	span, ctx := observability.NewSpan(ctx, "store.ExportSnapshot")
	defer span.End()

	snap := &models.Snapshot{ExportedAt: s.now().UTC(), Source: models.SnapshotSourceRemote}
	all, err := s.fetchAll(ctx)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "snapshot read failed, exporting cached collections",
			slog.String("error", err.Error()))
		snap.Source = models.SnapshotSourceLocal
		s.mu.RLock()
		snap.Profiles = values(s.profileM, (*models.Profile).Clone)
		snap.Questions = values(s.questionM, (*models.Question).Clone)
		snap.Popups = values(s.popupM, func(p *models.Popup) *models.Popup { cp := *p; return &cp })
		s.mu.RUnlock()
		return snap, nil
	}
	snap.Profiles = all.profiles
	snap.Questions = all.questions
	snap.Popups = all.popups
	return snap, nil
}

func values[T any](list []*T, clone func(*T) *T) []T {
	out := make([]T, len(list))
	for i, v := range list {
		out[i] = *clone(v)
	}
	return out
}

// EncodeSnapshot renders snap as indented JSON.
func EncodeSnapshot(snap *models.Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// DecodeSnapshot parses a blob written by EncodeSnapshot.
func DecodeSnapshot(blob []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, models.NewValidationError("invalid backup file: " + err.Error())
	}
	for _, p := range snap.Profiles {
		if p.ID == "" || p.IdentityID == "" {
			return nil, models.NewValidationError("invalid backup file: profile without id")
		}
	}
	for _, q := range snap.Questions {
		if q.ID == "" {
			return nil, models.NewValidationError("invalid backup file: question without id")
		}
	}
	for _, p := range snap.Popups {
		if p.ID == "" {
			return nil, models.NewValidationError("invalid backup file: popup without id")
		}
	}
	return &snap, nil
}

// Backup exports a snapshot through exp under its dated file name and
// returns that name.
func (s *Store) Backup(ctx context.Context, actor *models.Identity, exp Exporter) (string, error) {
	snap, err := s.ExportSnapshot(ctx, actor)
	if err != nil {
		return "", err
	}
	blob, err := EncodeSnapshot(snap)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	name := models.BackupFilename(snap.ExportedAt)
	if err := exp.Export(ctx, name, blob); err != nil {
		return "", models.NewInternalError(err)
	}
	return name, nil
}

// RestoreSnapshot writes every record in snap to the database in one
// transaction, overwriting rows with the same id, then refreshes the mirror.
// Records missing from snap are left alone. A failed restore writes nothing.
func (s *Store) RestoreSnapshot(ctx context.Context, actor *models.Identity, snap *models.Snapshot) Outcome {
	span, ctx := observability.NewSpan(ctx, "store.RestoreSnapshot")
	defer span.End()

	o := s.restoreSnapshot(ctx, actor, snap)
	span.SetError(o.Err)
	return record("restore_snapshot", o)
}

func (s *Store) restoreSnapshot(ctx context.Context, actor *models.Identity, snap *models.Snapshot) Outcome {
	if err := requireAdmin(actor); err != nil {
		return failed(err)
	}
	if snap == nil {
		return failed(models.NewValidationError("Snapshot is required"))
	}

	unlock := s.locks.lock(snapshotKeys(snap)...)
	defer unlock()

	if err := s.restorer.Restore(ctx, snap); err != nil {
		return failed(wrapRemote("restore snapshot", err))
	}
	if err := s.Load(ctx); err != nil {
		s.mergeSnapshot(snap)
	}
	middleware.Logger.InfoContext(ctx, "snapshot restored",
		slog.Int("profiles", len(snap.Profiles)),
		slog.Int("questions", len(snap.Questions)),
		slog.Int("popups", len(snap.Popups)))
	return applied()
}

// snapshotKeys lists the lock key of every record in snap once, profiles
// before questions before popups.
func snapshotKeys(snap *models.Snapshot) []string {
	seen := map[string]bool{}
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for i := range snap.Profiles {
		add(profileKey(snap.Profiles[i].ID))
	}
	for i := range snap.Questions {
		add(questionKey(snap.Questions[i].ID))
	}
	for i := range snap.Popups {
		add(popupKey(snap.Popups[i].ID))
	}
	return keys
}

func (s *Store) mergeSnapshot(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range snap.Profiles {
		s.profileM = replaceByID(s.profileM, snap.Profiles[i].Clone(), profileID)
	}
	for i := range snap.Questions {
		s.questionM = replaceByID(s.questionM, snap.Questions[i].Clone(), questionID)
	}
	for i := range snap.Popups {
		p := snap.Popups[i]
		s.popupM = replaceByID(s.popupM, &p, popupID)
	}
}
