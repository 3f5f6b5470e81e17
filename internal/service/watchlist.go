package service

import (
	"context"
	"errors"
	"fortunex-api/internal/dto"
	"fortunex-api/internal/model"
	"fortunex-api/internal/repository"
	"net/url"
	"strings"
)

const WatchlistLimit = 12

var ErrInvalidWatchlistEntry = errors.New("watchlist entry needs a symbol and an http(s) url")

type WatchlistService interface {
	List(ctx context.Context, clientRef string) ([]dto.WatchlistItem, error)
	Add(ctx context.Context, clientRef string, req dto.WatchlistRequest) ([]dto.WatchlistItem, error)
	Remove(ctx context.Context, clientRef, url string) ([]dto.WatchlistItem, error)
}

type watchlistServiceImpl struct {
	watchlistRepo repository.WatchlistRepository
}

func NewWatchlistService(watchlistRepo repository.WatchlistRepository) WatchlistService {
	return &watchlistServiceImpl{
		watchlistRepo: watchlistRepo,
	}
}

func (s *watchlistServiceImpl) List(ctx context.Context, clientRef string) ([]dto.WatchlistItem, error) {
	if clientRef == "" {
		return nil, ErrMissingClientRef
	}

	entries, err := s.watchlistRepo.List(ctx, clientRef)
	if err != nil {
		return nil, err
	}

	items := make([]dto.WatchlistItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.WatchlistItem{Symbol: e.Symbol, URL: e.URL, AddedAt: e.CreatedAt})
	}
	return items, nil
}

func (s *watchlistServiceImpl) Add(ctx context.Context, clientRef string, req dto.WatchlistRequest) ([]dto.WatchlistItem, error) {
	if clientRef == "" {
		return nil, ErrMissingClientRef
	}

	symbol := strings.TrimSpace(req.Symbol)
	link := strings.TrimSpace(req.URL)
	if symbol == "" || len(symbol) > 64 || len(link) > 512 {
		return nil, ErrInvalidWatchlistEntry
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidWatchlistEntry
	}

	err = s.watchlistRepo.Add(ctx, &model.WatchlistEntry{
		ClientRef: clientRef,
		Symbol:    symbol,
		URL:       link,
	}, WatchlistLimit)
	if err != nil {
		return nil, err
	}

	return s.List(ctx, clientRef)
}

func (s *watchlistServiceImpl) Remove(ctx context.Context, clientRef, link string) ([]dto.WatchlistItem, error) {
	if clientRef == "" {
		return nil, ErrMissingClientRef
	}

	if _, err := s.watchlistRepo.Remove(ctx, clientRef, strings.TrimSpace(link)); err != nil {
		return nil, err
	}

	return s.List(ctx, clientRef)
}
