// Package auth is the registration and login collaborator. It owns the
// credential half of a user record; presence fields are left to the
// proximity engine.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Nearby/internal/core"
	"github.com/dkeye/Nearby/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Directory is the slice of the presence table the auth service needs.
type Directory interface {
	AddRecord(ctx context.Context, rec domain.UserRecord) error
	Lookup(username string) (domain.UserRecord, bool)
}

type Service struct {
	users Directory
	cost  int
}

func NewService(users Directory) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}
	if _, exists := s.users.Lookup(username); exists {
		return core.ErrUsernameTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	rec, err := domain.NewUserRecord(username, string(hash))
	if err != nil {
		return err
	}
	if err := s.users.AddRecord(ctx, rec); err != nil {
		return err
	}
	log.Info().Str("module", "auth").Str("username", username).Msg("user registered")
	return nil
}

func (s *Service) Login(_ context.Context, username, password string) error {
	rec, ok := s.users.Lookup(username)
	if !ok {
		return core.ErrNotFound
	}
	if len(password) > domain.MaxPasswordLen {
		return core.ErrInvalidCredentials
	}
	err := bcrypt.CompareHashAndPassword([]byte(rec.CredentialHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return core.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
