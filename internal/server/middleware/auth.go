package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/pitchside/pitchside/internal/auth"
	"github.com/pitchside/pitchside/internal/model"
)

type contextKeyAuth string

// AuthUserKey is the context key for the authenticated admin user.
const AuthUserKey contextKeyAuth = "auth_user"

// Verifier validates an Authorization header against the live user
// collection. Implemented by auth.UserService.
type Verifier interface {
	VerifyRequest(ctx context.Context, authorization string, requireSuperAdmin bool) (*model.AdminUser, error)
}

// FailureRecorder counts rejected authentication attempts, if metrics are
// wired. May be nil.
type FailureRecorder interface {
	RecordAuthFailure(reason string)
}

// RequireAuth validates the Bearer token and attaches the sanitized user
// to the request context. Requests without a valid token get a 401.
func RequireAuth(verifier Verifier, failures FailureRecorder) func(http.Handler) http.Handler {
	return requireAuth(verifier, failures, false)
}

// RequireSuperAdmin is RequireAuth plus a live super-admin role check.
func RequireSuperAdmin(verifier Verifier, failures FailureRecorder) func(http.Handler) http.Handler {
	return requireAuth(verifier, failures, true)
}

func requireAuth(verifier Verifier, failures FailureRecorder, super bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := verifier.VerifyRequest(r.Context(), r.Header.Get("Authorization"), super)
			if err != nil {
				status, reason, message := classifyAuthError(err)
				if failures != nil {
					failures.RecordAuthFailure(reason)
				}
				writeAuthError(w, status, message)
				return
			}
			setActor(r.Context(), user.Email)
			ctx := context.WithValue(r.Context(), AuthUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user when a valid token is present and lets
// the request through anonymously otherwise. Used by endpoints whose
// response differs for authenticated callers.
func OptionalAuth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				if user, err := verifier.VerifyRequest(r.Context(), r.Header.Get("Authorization"), false); err == nil {
					setActor(r.Context(), user.Email)
					r = r.WithContext(context.WithValue(r.Context(), AuthUserKey, user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission enforces a section permission. Must run after
// RequireAuth in the chain.
func RequirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFrom(r.Context())
			if user == nil || !model.HasPermission(user, key) {
				writeAuthError(w, http.StatusForbidden, "You do not have permission to manage this section")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFrom extracts the authenticated user from the context. Returns nil
// for anonymous requests.
func UserFrom(ctx context.Context) *model.AdminUser {
	if user, ok := ctx.Value(AuthUserKey).(*model.AdminUser); ok {
		return user
	}
	return nil
}

func classifyAuthError(err error) (status int, reason, message string) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "expired_token", "Session expired, please log in again"
	case errors.Is(err, auth.ErrSuperAdminRequired):
		return http.StatusForbidden, "forbidden", "Super-admin access required"
	case errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid_token", "Authentication required"
	default:
		return http.StatusUnauthorized, "invalid_token", "Authentication required"
	}
}

// writeAuthError constructs JSON by hand; importing the handler package
// here would create a cycle. Messages are static strings. The error field
// carries the status class, the message field the human-readable detail.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	code := "Unauthorized"
	if status == http.StatusForbidden {
		code = "Forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":false,"error":"` + code + `","message":"` + message + `"}`))
}
