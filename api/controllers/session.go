package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/distrihogar/storefront-backend/api/middleware"
	"github.com/distrihogar/storefront-backend/api/responses"
	pkgauth "github.com/distrihogar/storefront-backend/pkg/auth"
	"github.com/distrihogar/storefront-backend/pkg/config"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/distrihogar/storefront-backend/pkg/logger"
)

type antiForgeryResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AntiForgeryToken mints a fresh anti-forgery token bound to the
// authenticated user. Clients call this on session start and again after a
// security-token rejection before retrying the mutation.
func AntiForgeryToken(cfg config.CSRFConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		now := time.Now().UTC()
		token, err := pkgauth.MintAntiForgeryToken(cfg, now, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint anti-forgery token"))
			return
		}

		responses.WriteSuccess(w, antiForgeryResponse{
			Token:     token,
			ExpiresAt: now.Add(cfg.TTL),
		})
	}
}
