package middleware

import (
	"net/http"
	"strings"

	"github.com/warrantyvault/backend/api/responses"
	"github.com/warrantyvault/backend/internal/owners"
	pkgauth "github.com/warrantyvault/backend/pkg/auth"
	"github.com/warrantyvault/backend/pkg/config"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
	"github.com/warrantyvault/backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the owner
// identity. Identities are minted externally, so the owner row is provisioned
// here the first time an id is seen; warranty inserts reference it.
func Auth(cfg config.JWTConfig, ownerService owners.Service, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if ownerService != nil {
				if err := ownerService.Provision(r.Context(), claims.UserID, claims.Email); err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}

			ctx := WithUserID(r.Context(), claims.UserID.String())
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
