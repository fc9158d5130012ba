package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/caseops/opsboard/internal/domain"
	"github.com/caseops/opsboard/internal/repository"
	jwtpkg "github.com/caseops/opsboard/pkg/jwt"
)

// Service validates bearer tokens issued by the identity provider and
// resolves the staff account behind them. Token issuance lives with the
// identity provider, not here.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	secret string
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, jwtSecret string) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, logger: logger, secret: jwtSecret}
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.secret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}
