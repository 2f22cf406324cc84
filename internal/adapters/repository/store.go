// Package repository persists finalized season snapshots.
package repository

import (
	"context"

	"github.com/okian/seasonboard/internal/domain/model"
)

// Store is the durable home of finalized seasons. Saved seasons are never
// updated in place; they are only read, or deleted as a whole.
type Store interface {
	// HasSeason reports whether metadata exists for season.
	HasSeason(ctx context.Context, season uint64) (bool, error)
	// Save writes the metadata and every row atomically. A season, item or
	// rank that already exists yields ErrDuplicateFinalization.
	Save(ctx context.Context, meta model.FinalizedPeriodMetadata, rows []model.FinalizedSnapshotRow) error
	// Replace drops any stored copy of meta's season and saves meta and rows
	// in the same transaction. On error the previous copy is kept.
	Replace(ctx context.Context, meta model.FinalizedPeriodMetadata, rows []model.FinalizedSnapshotRow) error
	// Metadata returns ErrNotFound for unknown seasons.
	Metadata(ctx context.Context, season uint64) (model.FinalizedPeriodMetadata, error)
	// Rows returns the season's rows ordered by rank.
	Rows(ctx context.Context, season uint64) ([]model.FinalizedSnapshotRow, error)
	// Seasons lists stored seasons in ascending order.
	Seasons(ctx context.Context) ([]uint64, error)
	// DeleteSeason removes one season, reporting whether it existed.
	DeleteSeason(ctx context.Context, season uint64) (bool, error)
	// DeleteBefore removes every season lower than season.
	DeleteBefore(ctx context.Context, season uint64) (int64, error)
}
