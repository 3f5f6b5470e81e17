package repository

import (
	"context"
	"errors"
	"fortunex-api/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRepository counts free analyses per client per UTC day and remembers
// when each client's trial began.
type UsageRepository interface {
	Count(ctx context.Context, clientRef, day string) (int, error)
	Increment(ctx context.Context, clientRef, day string) error
	// Reserve takes one slot of the day's allowance if fewer than limit are
	// used. It reports whether a slot was taken.
	Reserve(ctx context.Context, clientRef, day string, limit int) (bool, error)
	// Release gives back a slot taken by Reserve.
	Release(ctx context.Context, clientRef, day string) error
	// TrialStart returns when the trial of clientRef began, starting it at now
	// if it never did.
	TrialStart(ctx context.Context, clientRef string, now time.Time) (time.Time, error)
}

type usageRepoImpl struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepoImpl{
		db: db,
	}
}

func (r *usageRepoImpl) Count(ctx context.Context, clientRef, day string) (int, error) {
	var counter model.UsageCounter
	err := r.db.WithContext(ctx).
		Where("client_ref = ? AND day = ?", clientRef, day).
		First(&counter).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return counter.Count, nil
}

func (r *usageRepoImpl) Increment(ctx context.Context, clientRef, day string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_ref"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("usage_counters.count + ?", 1),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&model.UsageCounter{
		ClientRef: clientRef,
		Day:       day,
		Count:     1,
		UpdatedAt: time.Now().UTC(),
	}).Error
}

func (r *usageRepoImpl) Reserve(ctx context.Context, clientRef, day string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.UsageCounter{
		ClientRef: clientRef,
		Day:       day,
		Count:     0,
		UpdatedAt: now,
	}).Error
	if err != nil {
		return false, err
	}

	// the guard and the increment are one statement, so concurrent callers
	// cannot both take the last slot
	res := r.db.WithContext(ctx).
		Model(&model.UsageCounter{}).
		Where("client_ref = ? AND day = ? AND count < ?", clientRef, day, limit).
		Updates(map[string]interface{}{
			"count":      gorm.Expr("count + ?", 1),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected == 1, nil
}

func (r *usageRepoImpl) Release(ctx context.Context, clientRef, day string) error {
	return r.db.WithContext(ctx).
		Model(&model.UsageCounter{}).
		Where("client_ref = ? AND day = ? AND count > 0", clientRef, day).
		Updates(map[string]interface{}{
			"count":      gorm.Expr("count - ?", 1),
			"updated_at": time.Now().UTC(),
		}).
		Error
}

func (r *usageRepoImpl) TrialStart(ctx context.Context, clientRef string, now time.Time) (time.Time, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.TrialStart{
		ClientRef: clientRef,
		StartedAt: now.UTC(),
	}).Error
	if err != nil {
		return time.Time{}, err
	}

	var trial model.TrialStart
	if err := r.db.WithContext(ctx).Where("client_ref = ?", clientRef).First(&trial).Error; err != nil {
		return time.Time{}, err
	}

	return trial.StartedAt, nil
}
