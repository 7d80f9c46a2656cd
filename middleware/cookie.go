package middleware

import (
	"net/http"
	"time"

	forumauth "github.com/MrEthical07/forumauth"
)

func setRenewalCookie(w http.ResponseWriter, cfg forumauth.CookieConfig, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    token,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

func clearRenewalCookie(w http.ResponseWriter, cfg forumauth.CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}
