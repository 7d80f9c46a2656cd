package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	forumauth "github.com/MrEthical07/forumauth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the JSON body of a successful login or refresh. The
// renewal credential is only ever sent as a cookie.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login exchanges `{username, password}` for an access credential in the
// Authorization response header and a renewal credential in an HttpOnly
// cookie whose max-age matches the credential's remaining lifetime.
func Login(engine *forumauth.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}

		ctx := forumauth.WithClientIP(r.Context(), clientIP(r))
		pair, err := engine.Login(ctx, req.Username, req.Password)
		if err != nil {
			writeError(w, engine, "login", err)
			return
		}

		writeTokenPair(w, engine, pair)
	})
}

func writeTokenPair(w http.ResponseWriter, engine *forumauth.Engine, pair *forumauth.TokenPair) {
	setRenewalCookie(w, engine.CookieConfig(), pair.RenewalToken, pair.RenewalExpiresIn)

	w.Header().Set("Authorization", "Bearer "+pair.AccessToken)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(pair.AccessExpiresIn.Seconds()),
	})
}

// clientIP returns the host part of RemoteAddr. Proxy headers are handled
// by the router's RealIP middleware before this runs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
