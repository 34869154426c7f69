// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"

	"zeelink/internal/models"
	"zeelink/internal/observability"

	"gorm.io/gorm"
)

// Filter selects records by column equality. A nil filter matches everything.
type Filter map[string]any

// Records is the per-collection persistence surface used by the stores.
type Records[T any] interface {
	Get(ctx context.Context, filter Filter) ([]T, error)
	GetOne(ctx context.Context, id string) (*T, error)
	Insert(ctx context.Context, rec *T) error
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	// Save inserts rec or overwrites the stored row with the same id.
	Save(ctx context.Context, rec *T) error
}

type gormRecords[T any] struct {
	db       *gorm.DB
	table    string
	resource string
}

func newRecords[T any](db *gorm.DB, table, resource string) *gormRecords[T] {
	return &gormRecords[T]{db: db, table: table, resource: resource}
}

// NewQuestionRepository returns the question collection.
func NewQuestionRepository(db *gorm.DB) Records[models.Question] {
	return newRecords[models.Question](db, "questions", "Question")
}

// NewPopupRepository returns the popup collection.
func NewPopupRepository(db *gorm.DB) Records[models.Popup] {
	return newRecords[models.Popup](db, "popups", "Popup")
}

func (r *gormRecords[T]) trace(ctx context.Context, method string) (context.Context, func(error)) {
	span, ctx := observability.StartRemoteCall(ctx, r.table, method)
	done := observability.TrackQuery(method, r.table)
	return ctx, func(err error) {
		done()
		if !models.HasCode(err, models.CodeNotFound) {
			span.SetError(err)
		}
		span.End()
	}
}

func (r *gormRecords[T]) Get(ctx context.Context, filter Filter) ([]T, error) {
	ctx, end := r.trace(ctx, "get")
	var rows []T
	q := r.db.WithContext(ctx)
	if len(filter) > 0 {
		q = q.Where(map[string]any(filter))
	}
	err := q.Order("created_at").Order("id").Find(&rows).Error
	end(err)
	if err != nil {
		return nil, models.NewRemoteFailure("get "+r.table, err)
	}
	return rows, nil
}

func (r *gormRecords[T]) GetOne(ctx context.Context, id string) (*T, error) {
	ctx, end := r.trace(ctx, "get_one")
	var rec T
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	end(err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(r.resource, id)
		}
		return nil, models.NewRemoteFailure("get "+r.table, err)
	}
	return &rec, nil
}

func (r *gormRecords[T]) Insert(ctx context.Context, rec *T) error {
	ctx, end := r.trace(ctx, "insert")
	err := r.db.WithContext(ctx).Create(rec).Error
	end(err)
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(r.resource + " already exists")
		}
		return models.NewRemoteFailure("insert "+r.table, err)
	}
	return nil
}

func (r *gormRecords[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	ctx, end := r.trace(ctx, "update")
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	end(res.Error)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError(r.resource + " already exists")
		}
		return models.NewRemoteFailure("update "+r.table, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(r.resource, id)
	}
	return nil
}

func (r *gormRecords[T]) Delete(ctx context.Context, id string) error {
	ctx, end := r.trace(ctx, "delete")
	err := r.db.WithContext(ctx).Delete(new(T), "id = ?", id).Error
	end(err)
	if err != nil {
		return models.NewRemoteFailure("delete "+r.table, err)
	}
	return nil
}

func (r *gormRecords[T]) Save(ctx context.Context, rec *T) error {
	ctx, end := r.trace(ctx, "save")
	err := r.db.WithContext(ctx).Save(rec).Error
	end(err)
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(r.resource + " already exists")
		}
		return models.NewRemoteFailure("save "+r.table, err)
	}
	return nil
}

// firstWhere loads the first row matching query, returning nil, nil on a miss.
func (r *gormRecords[T]) firstWhere(ctx context.Context, method string, query string, args ...any) (*T, error) {
	ctx, end := r.trace(ctx, method)
	var rec T
	err := r.db.WithContext(ctx).Where(query, args...).First(&rec).Error
	end(err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewRemoteFailure(method+" "+r.table, err)
	}
	return &rec, nil
}

