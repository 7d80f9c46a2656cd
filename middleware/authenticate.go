package middleware

import (
	"errors"
	"net/http"

	forumauth "github.com/MrEthical07/forumauth"
)

// Authenticate resolves a bearer access credential into the request
// identity. Requests without one, or with an invalid or expired one, pass
// through unauthenticated; routes decide whether that is fatal.
func Authenticate(engine *forumauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := schemeToken(r.Header.Get("Authorization"), "Bearer")
			if !ok || engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := engine.ResolveIdentity(r.Context(), token)
			if err != nil {
				if !isCredentialError(err) {
					engine.Logger().Warn("forumauth: identity lookup failed", "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(forumauth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireIdentity responds 401 unless Authenticate installed an identity.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := forumauth.IdentityFromContext(r.Context()); !ok {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isCredentialError(err error) bool {
	return errors.Is(err, forumauth.ErrTokenMalformed) ||
		errors.Is(err, forumauth.ErrTokenInvalidSignature) ||
		errors.Is(err, forumauth.ErrTokenInvalidIssuer) ||
		errors.Is(err, forumauth.ErrTokenExpired) ||
		errors.Is(err, forumauth.ErrTokenWrongKind) ||
		errors.Is(err, forumauth.ErrIdentityNotFound)
}
