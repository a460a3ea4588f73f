package users

import (
	"context"
	"fmt"

	"github.com/edusales-crm/edusales-crm/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, role *Role) ([]User, error)
}

// Service handles user directory lookups.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetUser returns one user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns active users, optionally by role.
func (s *Service) ListUsers(ctx context.Context, role *Role) ([]User, error) {
	if role != nil && !role.IsValid() {
		return nil, fmt.Errorf("users: unknown role %q", *role)
	}
	return s.repo.ListUsers(ctx, role)
}

// ResolveActor looks up a user and returns the request actor identity.
func (s *Service) ResolveActor(ctx context.Context, userID int64) (shared.Actor, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return shared.Actor{}, err
	}
	if !u.IsActive {
		return shared.Actor{}, shared.ErrForbidden
	}
	return shared.Actor{ID: u.ID, Name: u.Name, Role: string(u.Role)}, nil
}
