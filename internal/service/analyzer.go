package service

import (
	"context"
	"errors"
	"fmt"
	"fortunex-api/internal/cache"
	"fortunex-api/internal/client"
	"fortunex-api/internal/config"
	"fortunex-api/internal/dto"
	"fortunex-api/internal/insight"
	"fortunex-api/internal/model"
	"fortunex-api/internal/repository"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoMatch          = errors.New("no matching pair found")
	ErrUsageLimit       = errors.New("free daily limit reached")
	ErrMissingClientRef = errors.New("missing client reference")
)

type AnalyzerService interface {
	// Analyze looks up the best pair for input and scores it. Clients without
	// an entitlement are limited to the free allowance.
	Analyze(ctx context.Context, clientRef, input string) (*dto.AnalyzeResponse, error)
	Usage(ctx context.Context, clientRef string) (dto.Usage, error)
}

type analyzerServiceImpl struct {
	dexClient          client.DexScreenerClient
	snapshots          cache.SnapshotCache
	usageRepo          repository.UsageRepository
	sessionRepo        repository.SessionRepository
	entitlementService EntitlementService
	policy             insight.Policy
	limits             config.Usage
	log                *zap.Logger
	now                func() time.Time
}

func NewAnalyzerService(
	dexClient client.DexScreenerClient,
	snapshots cache.SnapshotCache,
	usageRepo repository.UsageRepository,
	sessionRepo repository.SessionRepository,
	entitlementService EntitlementService,
	limits config.Usage,
	log *zap.Logger,
) AnalyzerService {
	if snapshots == nil {
		snapshots = cache.Nop{}
	}
	return &analyzerServiceImpl{
		dexClient:          dexClient,
		snapshots:          snapshots,
		usageRepo:          usageRepo,
		sessionRepo:        sessionRepo,
		entitlementService: entitlementService,
		policy:             insight.DefaultPolicy(),
		limits:             limits,
		log:                log.Named("analyzer"),
		now:                time.Now,
	}
}

func day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func (s *analyzerServiceImpl) Usage(ctx context.Context, clientRef string) (dto.Usage, error) {
	usage := dto.Usage{DailyCap: s.limits.FreeDailyCap}
	if clientRef == "" {
		return usage, ErrMissingClientRef
	}

	// trials and counters only exist for issued sessions
	if !ValidCode(clientRef) {
		return usage, ErrUnknownSession
	}
	if _, err := s.sessionRepo.Get(ctx, clientRef); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return usage, ErrUnknownSession
		}
		return usage, fmt.Errorf("find session: %w", err)
	}

	entitled, err := s.entitlementService.IsEntitled(ctx, clientRef)
	if err != nil {
		return usage, fmt.Errorf("check entitlement: %w", err)
	}
	if entitled {
		usage.Entitled = true
		return usage, nil
	}

	now := s.now()
	started, err := s.usageRepo.TrialStart(ctx, clientRef, now)
	if err != nil {
		return usage, fmt.Errorf("trial start: %w", err)
	}
	trialEnds := started.Add(time.Duration(s.limits.TrialDays) * 24 * time.Hour)
	usage.TrialEnds = &trialEnds
	usage.InTrial = now.Before(trialEnds)

	usage.UsedToday, err = s.usageRepo.Count(ctx, clientRef, day(now))
	if err != nil {
		return usage, fmt.Errorf("count usage: %w", err)
	}
	return usage, nil
}

func (s *analyzerServiceImpl) Analyze(ctx context.Context, clientRef, input string) (*dto.AnalyzeResponse, error) {
	query, err := NormalizeQuery(input)
	if err != nil {
		return nil, err
	}

	usage, err := s.Usage(ctx, clientRef)
	if err != nil {
		return nil, err
	}

	today := day(s.now())
	reserved := false
	if !usage.Entitled && !usage.InTrial {
		ok, err := s.usageRepo.Reserve(ctx, clientRef, today, s.limits.FreeDailyCap)
		if err != nil {
			return nil, fmt.Errorf("reserve usage: %w", err)
		}
		if !ok {
			return nil, ErrUsageLimit
		}
		reserved = true
	}

	pair, cached, err := s.lookup(ctx, query)
	if err != nil {
		if reserved {
			s.release(ctx, clientRef, today)
		}
		return nil, err
	}

	analysis := s.policy.Analyze(pair, s.now())

	if !usage.Entitled {
		if !reserved {
			if err := s.usageRepo.Increment(ctx, clientRef, today); err != nil {
				return nil, fmt.Errorf("record usage: %w", err)
			}
		}
		usage.UsedToday++
	}

	return &dto.AnalyzeResponse{
		Query: query,
		Pair: dto.PairInfo{
			Symbol:      pair.Symbol(),
			ChainID:     pair.ChainID,
			DexID:       pair.DexID,
			PairAddress: pair.PairAddress,
			URL:         pair.URL,
			PriceUSD:    pair.PriceUSD.Float(),
		},
		Analysis: analysis,
		Summary:  insight.Summary(pair, analysis),
		Cached:   cached,
		Usage:    usage,
	}, nil
}

// release hands back a reserved slot after a failed lookup. It runs even when
// the request was cancelled.
func (s *analyzerServiceImpl) release(ctx context.Context, clientRef, day string) {
	if err := s.usageRepo.Release(context.WithoutCancel(ctx), clientRef, day); err != nil {
		s.log.Warn("Usage release failed", zap.String("client_ref", clientRef), zap.Error(err))
	}
}

func (s *analyzerServiceImpl) lookup(ctx context.Context, query string) (*model.Pair, bool, error) {
	pair, err := s.snapshots.Get(ctx, query)
	if err != nil {
		s.log.Warn("Snapshot cache read failed", zap.String("query", query), zap.Error(err))
	}
	if pair != nil {
		return pair, true, nil
	}

	pairs, err := s.dexClient.Search(ctx, query)
	if err != nil {
		return nil, false, err
	}
	if len(pairs) == 0 {
		return nil, false, ErrNoMatch
	}

	best := pairs[0]
	if err := s.snapshots.Set(ctx, query, best); err != nil {
		s.log.Warn("Snapshot cache write failed", zap.String("query", query), zap.Error(err))
	}
	return best, false, nil
}
