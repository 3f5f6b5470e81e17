package service

import (
	"context"
	"errors"
	"fortunex-api/internal/dto"
	"fortunex-api/internal/repository"
	"time"

	"gorm.io/gorm"
)

type EntitlementService interface {
	IsEntitled(ctx context.Context, clientRef string) (bool, error)
	Get(ctx context.Context, clientRef string) (*dto.EntitlementResponse, error)
}

type entitlementServiceImpl struct {
	entitlementRepo repository.EntitlementRepository
	now             func() time.Time
}

func NewEntitlementService(entitlementRepo repository.EntitlementRepository) EntitlementService {
	return &entitlementServiceImpl{
		entitlementRepo: entitlementRepo,
		now:             time.Now,
	}
}

func (s *entitlementServiceImpl) IsEntitled(ctx context.Context, clientRef string) (bool, error) {
	resp, err := s.Get(ctx, clientRef)
	if err != nil {
		return false, err
	}
	return resp.Entitled, nil
}

func (s *entitlementServiceImpl) Get(ctx context.Context, clientRef string) (*dto.EntitlementResponse, error) {
	resp := &dto.EntitlementResponse{ClientRef: clientRef}
	if clientRef == "" {
		return resp, nil
	}

	e, err := s.entitlementRepo.Get(ctx, clientRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	resp.Entitled = e.ActiveAt(s.now())
	resp.Plan = e.Plan
	resp.Status = string(e.Status)
	resp.ExpiresAt = e.ExpiresAt
	return resp, nil
}
