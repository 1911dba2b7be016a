package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medai-lab/labdash/internal/domain/event"
	"github.com/medai-lab/labdash/internal/platform/auth"
)

const minPasswordLength = 8

type Service struct {
	repo   Repository
	issuer *auth.TokenIssuer
	events *event.Service
	logger zerolog.Logger
}

func NewService(repo Repository, issuer *auth.TokenIssuer, events *event.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, events: events, logger: logger}
}

// CreateInput carries a new account request.
type CreateInput struct {
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     auth.Role `json:"role"`
	Password string    `json:"password"`
}

// Create registers a new account. Admin surface.
func (s *Service) Create(ctx context.Context, actor auth.Viewer, in CreateInput) (*Account, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "required"}
	}
	if !in.Role.Valid() {
		return nil, &ValidationError{Field: "role", Reason: "unknown role"}
	}
	if len(in.Password) < minPasswordLength {
		return nil, &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &Account{
		Email:        email,
		FullName:     in.FullName,
		Role:         in.Role,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.events.LogUserAdded(ctx, actor, a.Email)
	return a, nil
}

// Delete removes an account. Admin surface; admins cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor auth.Viewer, id uuid.UUID) error {
	if actor.ID == id {
		return &ValidationError{Field: "id", Reason: "cannot delete your own account"}
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.LogUserDeleted(ctx, actor, a.Email)
	return nil
}

// LoginResult carries the issued token and the authenticated account.
type LoginResult struct {
	Token   string   `json:"token"`
	Account *Account `json:"account"`
}

// Login verifies credentials and issues a bearer token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := s.issuer.Issue(a.Viewer())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.events.LogLogin(ctx, a.Viewer())
	return &LoginResult{Token: token, Account: a}, nil
}

// Logout records the sign-out. Tokens are stateless, so this is purely an
// audit event.
func (s *Service) Logout(ctx context.Context, actor auth.Viewer) {
	s.events.LogLogout(ctx, actor)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListByRole returns the accounts of one role, for reviewer pickers.
func (s *Service) ListByRole(ctx context.Context, role auth.Role) ([]*Account, error) {
	if !role.Valid() {
		return nil, &ValidationError{Field: "role", Reason: "unknown role"}
	}
	return s.repo.ListByRole(ctx, role)
}
