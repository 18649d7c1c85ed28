package middleware

import (
	"context"

	"github.com/distrihogar/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxTier   contextKey = "tier"
)

// UserIDFromContext returns the authenticated user id, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// TierFromContext returns the authenticated user's pricing tier.
func TierFromContext(ctx context.Context) enums.UserTier {
	if ctx == nil {
		return enums.UserTierNatural
	}
	if v, ok := ctx.Value(ctxTier).(enums.UserTier); ok {
		return v
	}
	return enums.UserTierNatural
}

// WithUser injects the authenticated identity into the context.
func WithUser(ctx context.Context, userID uuid.UUID, tier enums.UserTier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxTier, tier)
}
