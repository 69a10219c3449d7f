package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"slotswap/pkg/auth"
)

// AuthService covers account creation and login. It issues the bearer tokens
// the swap engine's callers authenticate with; the engine itself only ever
// sees the resolved user id.
type AuthService interface {
	Signup(ctx context.Context, name string, email string, password string) (*User, string, error)
	Login(ctx context.Context, email string, password string) (*User, string, error)
}

type authService struct {
	repository Repository
	issuer     *auth.TokenIssuer
}

func NewAuthService(repository Repository, issuer *auth.TokenIssuer) AuthService {
	return &authService{repository: repository, issuer: issuer}
}

func (s *authService) Signup(ctx context.Context, name string, email string, password string) (*User, string, error) {
	err := ValidateSignup(name, email, password)
	if err != nil {
		return nil, "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	user := &User{
		Id:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
	}

	saved, err := s.repository.SaveUser(ctx, user)
	if err != nil {
		return nil, "", err
	}

	token, err := s.issuer.Issue(saved.Id)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	log.Ctx(ctx).Info().Str("user_id", saved.Id).Msg("user registered")

	return saved, token, nil
}

func (s *authService) Login(ctx context.Context, email string, password string) (*User, string, error) {
	err := ValidateCredentials(email, password)
	if err != nil {
		return nil, "", err
	}

	user, err := s.repository.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		// A missing account and a bad password look the same to the caller.
		return nil, "", fmt.Errorf("%w: invalid credentials", ErrForbidden)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, "", fmt.Errorf("%w: invalid credentials", ErrForbidden)
	}

	token, err := s.issuer.Issue(user.Id)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return user, token, nil
}
