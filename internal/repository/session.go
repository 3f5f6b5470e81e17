package repository

import (
	"context"
	"fortunex-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository interface {
	// Create stores s unless its client ref or token already exists. It
	// reports whether a row was written.
	Create(ctx context.Context, s *model.ClientSession) (bool, error)
	Get(ctx context.Context, clientRef string) (*model.ClientSession, error)
	GetByToken(ctx context.Context, token string) (*model.ClientSession, error)
	// SetRefSourceOnce records who referred clientRef, keeping the first value.
	SetRefSourceOnce(ctx context.Context, clientRef, refSource string) error
}

type sessionRepoImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepoImpl{db: db}
}

func (r *sessionRepoImpl) Create(ctx context.Context, s *model.ClientSession) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepoImpl) Get(ctx context.Context, clientRef string) (*model.ClientSession, error) {
	var s model.ClientSession
	err := r.db.WithContext(ctx).
		Where("client_ref = ?", clientRef).
		First(&s).
		Error

	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *sessionRepoImpl) GetByToken(ctx context.Context, token string) (*model.ClientSession, error) {
	var s model.ClientSession
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&s).
		Error

	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *sessionRepoImpl) SetRefSourceOnce(ctx context.Context, clientRef, refSource string) error {
	return r.db.WithContext(ctx).
		Model(&model.ClientSession{}).
		Where("client_ref = ? AND (ref_source = '' OR ref_source IS NULL)", clientRef).
		Update("ref_source", refSource).
		Error
}
