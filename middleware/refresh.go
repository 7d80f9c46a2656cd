package middleware

import (
	"net/http"

	forumauth "github.com/MrEthical07/forumauth"
)

func extractorsFor(engine *forumauth.Engine, extractors []Extractor) []Extractor {
	if len(extractors) > 0 {
		return extractors
	}
	return DefaultExtractors(engine.CookieConfig().Name)
}

// Refresh rotates the presented renewal credential. It responds 400 when no
// credential can be found and 401 when it is not the active one; the stale
// cookie is cleared in that case.
func Refresh(engine *forumauth.Engine, extractors ...Extractor) http.Handler {
	chain := extractorsFor(engine, extractors)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractRenewal(r, chain)
		if token == "" {
			http.Error(w, "renewal token required", http.StatusBadRequest)
			return
		}

		ctx := forumauth.WithClientIP(r.Context(), clientIP(r))
		pair, err := engine.Refresh(ctx, token)
		if err != nil {
			if status, _ := statusFor(err); status == http.StatusUnauthorized {
				clearRenewalCookie(w, engine.CookieConfig())
			}
			writeError(w, engine, "refresh", err)
			return
		}

		writeTokenPair(w, engine, pair)
	})
}

// Logout revokes the presented renewal credential and clears the cookie.
// Revoking an already revoked credential still succeeds.
func Logout(engine *forumauth.Engine, extractors ...Extractor) http.Handler {
	chain := extractorsFor(engine, extractors)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractRenewal(r, chain)
		if token == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		ctx := forumauth.WithClientIP(r.Context(), clientIP(r))
		if err := engine.Logout(ctx, token); err != nil {
			writeError(w, engine, "logout", err)
			return
		}

		clearRenewalCookie(w, engine.CookieConfig())
		w.WriteHeader(http.StatusOK)
	})
}
