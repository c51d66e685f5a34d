package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/screening/registry/internal/platform/auth"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID, username, fullName string) (string, time.Time, error)
}

type Service struct {
	users      UserRepository
	tokens     TokenIssuer
	bcryptCost int
}

func NewService(users UserRepository, tokens TokenIssuer, bcryptCost int) *Service {
	return &Service{users: users, tokens: tokens, bcryptCost: bcryptCost}
}

// Register creates an operator account. The username is checked up front so
// a taken name fails before the password is hashed; the store's unique
// constraint still decides races.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	_, err := s.users.GetByUsername(ctx, req.Username)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		ID:           uuid.New(),
		FullName:     req.FullName,
		Username:     req.Username,
		PasswordHash: hash,
	}
	u.Token, _, err = s.tokens.Issue(u.ID.String(), u.Username, u.FullName)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the credentials and issues a fresh token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("login %s: %w", u.Username, err)
	}

	token, exp, err := s.tokens.Issue(u.ID.String(), u.Username, u.FullName)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, Payload: u}, nil
}
