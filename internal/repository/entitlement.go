package repository

import (
	"context"
	"fortunex-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntitlementRepository interface {
	Get(ctx context.Context, clientRef string) (*model.Entitlement, error)
	GetBySubscriptionID(ctx context.Context, tx *gorm.DB, subscriptionID string) (*model.Entitlement, error)
	Upsert(ctx context.Context, tx *gorm.DB, e *model.Entitlement) error
	Save(ctx context.Context, tx *gorm.DB, e *model.Entitlement) error
}

type entitlementRepoImpl struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepoImpl{
		db: db,
	}
}

func (r *entitlementRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Get returns gorm.ErrRecordNotFound when the client never paid.
func (r *entitlementRepoImpl) Get(ctx context.Context, clientRef string) (*model.Entitlement, error) {
	var e model.Entitlement
	err := r.db.WithContext(ctx).
		Where("client_ref = ?", clientRef).
		First(&e).
		Error

	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *entitlementRepoImpl) GetBySubscriptionID(ctx context.Context, tx *gorm.DB, subscriptionID string) (*model.Entitlement, error) {
	var e model.Entitlement
	err := r.conn(tx).WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		First(&e).
		Error

	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *entitlementRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, e *model.Entitlement) error {
	return r.conn(tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan", "status", "customer_id", "subscription_id", "expires_at", "last_event_id", "updated_at",
		}),
	}).Create(e).Error
}

func (r *entitlementRepoImpl) Save(ctx context.Context, tx *gorm.DB, e *model.Entitlement) error {
	return r.conn(tx).WithContext(ctx).Save(e).Error
}
