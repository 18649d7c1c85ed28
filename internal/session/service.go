// Package session validates that the account behind a request is still
// allowed to act. Tokens outlive account state, so every cart operation
// re-checks the user row instead of trusting the claims alone.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/enums"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Account is the validated identity handed to downstream services.
type Account struct {
	UserID uuid.UUID
	Email  string
	Tier   enums.UserTier
}

// Service resolves and validates the acting account.
type Service interface {
	ResolveAccount(ctx context.Context, userID uuid.UUID) (*Account, error)
}

type service struct {
	users userLoader
}

// NewService builds a session service backed by the provided user loader.
func NewService(users userLoader) (Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	return &service{users: users}, nil
}

// ResolveAccount loads the user row and verifies it is still active. A
// missing, soft-deleted, or non-approved account all collapse into the same
// unauthorized error so callers cannot distinguish them.
func (s *service) ResolveAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session invalid, please re-authenticate")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session invalid, please re-authenticate")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if !user.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session invalid, please re-authenticate")
	}

	tier := user.Tier
	if !tier.IsValid() {
		tier = enums.UserTierNatural
	}

	return &Account{
		UserID: user.ID,
		Email:  user.Email,
		Tier:   tier,
	}, nil
}
