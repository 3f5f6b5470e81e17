package repository

import (
	"context"
	"errors"
	"fortunex-api/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDuplicateEvent = errors.New("webhook event already processed")

type WebhookEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records the event inside tx. It returns ErrDuplicateEvent
	// when another delivery of the same event got there first.
	MarkProcessed(ctx context.Context, tx *gorm.DB, eventID, eventType string) error
}

type webhookEventRepoImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepoImpl{db: db}
}

func (r *webhookEventRepoImpl) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error

	return count > 0, err
}

func (r *webhookEventRepoImpl) MarkProcessed(ctx context.Context, tx *gorm.DB, eventID, eventType string) error {
	if tx == nil {
		tx = r.db
	}

	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateEvent
	}
	return nil
}
