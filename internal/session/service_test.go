package session

import (
	"context"
	"testing"

	"github.com/distrihogar/storefront-backend/pkg/db/models"
	"github.com/distrihogar/storefront-backend/pkg/enums"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubUserLoader struct {
	user *models.User
	err  error
}

func (s *stubUserLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func approvedUser() *models.User {
	return &models.User{
		ID:     uuid.New(),
		Email:  "buyer@example.com",
		Tier:   enums.UserTierEmpresa,
		Status: enums.UserStatusApproved,
	}
}

func TestResolveAccountReturnsTier(t *testing.T) {
	user := approvedUser()
	svc, err := NewService(&stubUserLoader{user: user})
	require.NoError(t, err)

	account, err := svc.ResolveAccount(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, account.UserID)
	require.Equal(t, enums.UserTierEmpresa, account.Tier)
}

func TestResolveAccountRejectsMissingUser(t *testing.T) {
	svc, err := NewService(&stubUserLoader{err: gorm.ErrRecordNotFound})
	require.NoError(t, err)

	_, err = svc.ResolveAccount(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestResolveAccountRejectsPendingUser(t *testing.T) {
	user := approvedUser()
	user.Status = enums.UserStatusPending

	svc, err := NewService(&stubUserLoader{user: user})
	require.NoError(t, err)

	_, err = svc.ResolveAccount(context.Background(), user.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestResolveAccountRejectsSoftDeletedUser(t *testing.T) {
	user := approvedUser()
	user.DeletedAt = gorm.DeletedAt{Valid: true}

	svc, err := NewService(&stubUserLoader{user: user})
	require.NoError(t, err)

	_, err = svc.ResolveAccount(context.Background(), user.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestResolveAccountRejectsNilID(t *testing.T) {
	svc, err := NewService(&stubUserLoader{user: approvedUser()})
	require.NoError(t, err)

	_, err = svc.ResolveAccount(context.Background(), uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
