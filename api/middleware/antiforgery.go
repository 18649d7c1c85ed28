package middleware

import (
	"net/http"

	"github.com/distrihogar/storefront-backend/api/responses"
	pkgauth "github.com/distrihogar/storefront-backend/pkg/auth"
	"github.com/distrihogar/storefront-backend/pkg/config"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/distrihogar/storefront-backend/pkg/logger"
)

// AntiForgeryHeader carries the token required on mutating calls.
const AntiForgeryHeader = "X-CSRF-Token"

var mutatingMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// AntiForgery rejects mutating requests lacking a valid anti-forgery token
// bound to the authenticated user. The rejection carries its own error code
// so clients can refresh the token and retry once instead of treating it as
// an auth failure.
func AntiForgery(cfg config.CSRFConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, mutating := mutatingMethods[r.Method]; !mutating {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(AntiForgeryHeader)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeSecurityToken, "anti-forgery token missing"))
				return
			}

			userID := UserIDFromContext(r.Context())
			if err := pkgauth.ParseAntiForgeryToken(cfg, token, userID); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeSecurityToken, err, "anti-forgery token invalid"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
