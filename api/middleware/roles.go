package middleware

import (
	"net/http"

	"github.com/tinytales/storefront-backend/api/responses"
	"github.com/tinytales/storefront-backend/pkg/enums"
	pkgerrors "github.com/tinytales/storefront-backend/pkg/errors"
	"github.com/tinytales/storefront-backend/pkg/logger"
)

// RequireAnyRole lets through admins holding one of allowed. It runs after Auth;
// a request with no actor at all is treated as forbidden, not unauthenticated.
func RequireAnyRole(logg *logger.Logger, allowed ...enums.AdminRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, _ := ActorFromContext(r.Context())
			if !actor.Role.In(allowed...) {
				err := pkgerrors.New(pkgerrors.CodeForbidden, "this action needs one of the roles "+joinRoles(allowed))
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func joinRoles(roles []enums.AdminRole) string {
	out := ""
	for i, role := range roles {
		if i > 0 {
			out += ", "
		}
		out += string(role)
	}
	return out
}
