package middleware

import (
	"errors"
	"net/http"

	forumauth "github.com/MrEthical07/forumauth"
)

// statusFor maps an Engine error to an HTTP status and a short client
// message. Security failures share one message; the reason is only logged.
func statusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, forumauth.ErrLockAcquisitionFailed):
		return http.StatusServiceUnavailable, "busy, retry later"
	case errors.Is(err, forumauth.ErrStoreUnavailable):
		return http.StatusInternalServerError, "internal error"
	case errors.Is(err, forumauth.ErrLoginRateLimited),
		errors.Is(err, forumauth.ErrRenewalRateLimited):
		return http.StatusTooManyRequests, "too many attempts"
	case errors.Is(err, forumauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, forumauth.ErrAccountUnverified):
		return http.StatusUnauthorized, "account not verified"
	case errors.Is(err, forumauth.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, forumauth.ErrTokenMalformed),
		errors.Is(err, forumauth.ErrTokenInvalidSignature),
		errors.Is(err, forumauth.ErrTokenInvalidIssuer),
		errors.Is(err, forumauth.ErrTokenWrongKind),
		errors.Is(err, forumauth.ErrPrincipalMismatch),
		errors.Is(err, forumauth.ErrInvalidRenewalToken):
		return http.StatusUnauthorized, "unauthenticated"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError writes a text/plain error and logs server-side failures.
func writeError(w http.ResponseWriter, engine *forumauth.Engine, route string, err error) int {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		engine.Logger().Error("forumauth: request failed", "route", route, "status", status, "error", err)
	} else {
		engine.Logger().Debug("forumauth: request rejected", "route", route, "status", status, "error", err)
	}
	http.Error(w, msg, status)
	return status
}
