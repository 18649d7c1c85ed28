package auth

import (
	"github.com/distrihogar/storefront-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Tier   enums.UserTier
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Tier   enums.UserTier `json:"tier"`
	jwt.RegisteredClaims
}

// AntiForgeryClaims is the short-lived token required on mutating calls. It
// is distinct from the access token: same user, separate secret, separate
// TTL, and a purpose marker so one can never stand in for the other.
type AntiForgeryClaims struct {
	UserID  uuid.UUID `json:"user_id"`
	Purpose string    `json:"purpose"`
	jwt.RegisteredClaims
}

// AntiForgeryPurpose is the required purpose claim on anti-forgery tokens.
const AntiForgeryPurpose = "csrf"
