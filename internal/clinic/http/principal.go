package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/clinic/internal/clinic/service"
	"github.com/aussiebroadwan/clinic/pkg/httpx"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

type sessionKey struct{}

// PrincipalMiddleware turns the verified token subject into a service
// Session. The user is reloaded on every request, so a deactivated account
// or a changed role takes effect before the token expires. It must run after
// httpx.AuthnMiddleware.
func PrincipalMiddleware(core *service.Core) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, ok := httpx.UserIDFromContext(ctx)
			if !ok {
				httpx.WriteBearerError(w, "missing subject")
				return
			}

			p, err := core.Principal(ctx, userID)
			if err != nil {
				if errors.Is(err, service.ErrInvalidCredentials) {
					httpx.WriteBearerError(w, "account is no longer active")
					return
				}
				writeServiceError(w, r, err)
				return
			}

			ctx = slogx.With(ctx, "role", p.Role.String())
			ctx = context.WithValue(ctx, sessionKey{}, core.Session(p))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFrom returns the Session installed by PrincipalMiddleware.
func sessionFrom(ctx context.Context) *service.Session {
	s, _ := ctx.Value(sessionKey{}).(*service.Session)
	return s
}
