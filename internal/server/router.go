package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	forumauth "github.com/MrEthical07/forumauth"
	"github.com/MrEthical07/forumauth/metrics/export/prometheus"
	"github.com/MrEthical07/forumauth/middleware"
)

// NewRouter builds the HTTP routes:
//
//	POST /auth/login    credentials for an access header and renewal cookie
//	POST /auth/refresh  rotate the renewal credential
//	POST /auth/logout   revoke the renewal credential
//	GET  /me            the authenticated identity
//	GET  /healthz       session store round trip
//	GET  /metrics       Prometheus exposition
func NewRouter(engine *forumauth.Engine, logger *slog.Logger, requestTimeout time.Duration) http.Handler {
	if logger == nil {
		logger = engine.Logger()
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		requestLogger(logger),
	)
	if requestTimeout > 0 {
		r.Use(chimw.Timeout(requestTimeout))
	}

	r.Get("/healthz", healthz(engine))
	r.Method(http.MethodGet, "/metrics", prometheus.Handler(engine))

	r.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodPost, "/login", middleware.Login(engine))
		r.Method(http.MethodPost, "/refresh", middleware.Refresh(engine))
		r.Method(http.MethodPost, "/logout", middleware.Logout(engine))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(engine), middleware.RequireIdentity)
		r.Get("/me", me)
	})

	return r
}

type identityResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Verified bool     `json:"verified"`
}

func me(w http.ResponseWriter, r *http.Request) {
	identity, _ := forumauth.IdentityFromContext(r.Context())
	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, identityResponse{
		ID:       identity.ID,
		Username: identity.Username,
		Roles:    roles,
		Verified: identity.Verified,
	})
}

func healthz(engine *forumauth.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latency, err := engine.Ping(r.Context())
		if err != nil {
			engine.Logger().Warn("forumauth: health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "ok",
			"store_latency_ms": latency.Milliseconds(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("forumauth: http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
