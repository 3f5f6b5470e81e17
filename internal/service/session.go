package service

import (
	"context"
	"errors"
	"fmt"
	"fortunex-api/internal/dto"
	"fortunex-api/internal/model"
	"fortunex-api/internal/repository"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const codeLength = 6

var codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

var ErrUnknownSession = errors.New("unknown session")

// ValidCode reports whether s looks like a client reference code.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// SessionService issues client sessions. The six character code is public
// (it is shared in referral links and attached to checkouts); the token is
// the secret the client authenticates with.
type SessionService interface {
	// Start returns the session token authenticates, issuing a new code and
	// token when token is empty or unknown. refSource is kept the first time
	// only.
	Start(ctx context.Context, token, refSource string) (*dto.SessionResponse, error)
	// Resolve returns the client code that token authenticates.
	Resolve(ctx context.Context, token string) (string, error)
	// Lookup finds a session by its public code.
	Lookup(ctx context.Context, clientRef string) (*model.ClientSession, error)
}

type sessionServiceImpl struct {
	sessionRepo repository.SessionRepository
	newCode     func() string
	newToken    func() string
}

func NewSessionService(sessionRepo repository.SessionRepository) SessionService {
	return &sessionServiceImpl{
		sessionRepo: sessionRepo,
		newCode:     newCode,
		newToken:    uuid.NewString,
	}
}

func newCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:codeLength])
}

func sessionResponse(s *model.ClientSession, created bool) *dto.SessionResponse {
	return &dto.SessionResponse{
		ClientRef: s.ClientRef,
		Token:     s.Token,
		RefSource: s.RefSource,
		Created:   created,
	}
}

func (s *sessionServiceImpl) byToken(ctx context.Context, token string) (*model.ClientSession, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, ErrUnknownSession
	}

	sess, err := s.sessionRepo.GetByToken(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownSession
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return sess, nil
}

func (s *sessionServiceImpl) Resolve(ctx context.Context, token string) (string, error) {
	sess, err := s.byToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return "", err
	}
	return sess.ClientRef, nil
}

func (s *sessionServiceImpl) Lookup(ctx context.Context, clientRef string) (*model.ClientSession, error) {
	clientRef = strings.ToUpper(strings.TrimSpace(clientRef))
	if !ValidCode(clientRef) {
		return nil, ErrUnknownSession
	}

	sess, err := s.sessionRepo.Get(ctx, clientRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownSession
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return sess, nil
}

func (s *sessionServiceImpl) Start(ctx context.Context, token, refSource string) (*dto.SessionResponse, error) {
	token = strings.TrimSpace(token)
	refSource = strings.ToUpper(strings.TrimSpace(refSource))
	if !ValidCode(refSource) {
		refSource = ""
	}

	if token != "" {
		existing, err := s.byToken(ctx, token)
		switch {
		case err == nil:
			if refSource == "" || refSource == existing.ClientRef || existing.RefSource != "" {
				return sessionResponse(existing, false), nil
			}
			if err := s.sessionRepo.SetRefSourceOnce(ctx, existing.ClientRef, refSource); err != nil {
				return nil, fmt.Errorf("store referral: %w", err)
			}
			// a concurrent start may have stored a different source first
			existing, err = s.sessionRepo.Get(ctx, existing.ClientRef)
			if err != nil {
				return nil, fmt.Errorf("reload session: %w", err)
			}
			return sessionResponse(existing, false), nil
		case !errors.Is(err, ErrUnknownSession):
			return nil, err
		}
	}

	for attempt := 0; attempt < 5; attempt++ {
		code := s.newCode()
		if code == refSource {
			continue
		}
		sess := &model.ClientSession{ClientRef: code, Token: s.newToken(), RefSource: refSource}
		created, err := s.sessionRepo.Create(ctx, sess)
		if err != nil {
			return nil, err
		}
		if created {
			return sessionResponse(sess, true), nil
		}
	}
	return nil, errors.New("could not allocate a unique client reference")
}
