package repository

import (
	"context"

	"zeelink/internal/models"

	"gorm.io/gorm"
)

// SnapshotRestorer writes a whole snapshot or nothing.
type SnapshotRestorer interface {
	Restore(ctx context.Context, snap *models.Snapshot) error
}

type snapshotRestorer struct {
	db *gorm.DB
}

// NewSnapshotRestorer returns a SnapshotRestorer that saves every record of a
// snapshot in one transaction.
func NewSnapshotRestorer(db *gorm.DB) SnapshotRestorer {
	return &snapshotRestorer{db: db}
}

func (r *snapshotRestorer) Restore(ctx context.Context, snap *models.Snapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveAll(ctx, newRecords[models.Profile](tx, "profiles", "Profile"), snap.Profiles); err != nil {
			return err
		}
		if err := saveAll(ctx, newRecords[models.Question](tx, "questions", "Question"), snap.Questions); err != nil {
			return err
		}
		return saveAll(ctx, newRecords[models.Popup](tx, "popups", "Popup"), snap.Popups)
	})
}

func saveAll[T any](ctx context.Context, r *gormRecords[T], rows []T) error {
	for i := range rows {
		rec := rows[i]
		if err := r.Save(ctx, &rec); err != nil {
			return err
		}
	}
	return nil
}
