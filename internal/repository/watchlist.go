package repository

import (
	"context"
	"fortunex-api/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WatchlistRepository interface {
	// List returns the entries of clientRef, newest first.
	List(ctx context.Context, clientRef string) ([]*model.WatchlistEntry, error)
	// Add inserts entry, or moves an existing entry with the same URL to the
	// front, then drops the oldest entries beyond limit.
	Add(ctx context.Context, entry *model.WatchlistEntry, limit int) error
	Remove(ctx context.Context, clientRef, url string) (bool, error)
}

type watchlistRepoImpl struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) WatchlistRepository {
	return &watchlistRepoImpl{
		db: db,
	}
}

func (r *watchlistRepoImpl) List(ctx context.Context, clientRef string) ([]*model.WatchlistEntry, error) {
	var entries []*model.WatchlistEntry

	err := r.db.WithContext(ctx).
		Where("client_ref = ?", clientRef).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).
		Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *watchlistRepoImpl) Add(ctx context.Context, entry *model.WatchlistEntry, limit int) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "client_ref"}, {Name: "url"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"symbol":     entry.Symbol,
				"created_at": entry.CreatedAt,
			}),
		}).Create(entry).Error
		if err != nil {
			return err
		}

		if limit <= 0 {
			return nil
		}

		var ids []uint
		err = tx.Model(&model.WatchlistEntry{}).
			Where("client_ref = ?", entry.ClientRef).
			Order("created_at DESC").
			Order("id DESC").
			Pluck("id", &ids).
			Error
		if err != nil {
			return err
		}

		if len(ids) <= limit {
			return nil
		}
		return tx.Where("id IN ?", ids[limit:]).Delete(&model.WatchlistEntry{}).Error
	})
}

func (r *watchlistRepoImpl) Remove(ctx context.Context, clientRef, url string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("client_ref = ? AND url = ?", clientRef, url).
		Delete(&model.WatchlistEntry{})

	return res.RowsAffected > 0, res.Error
}
