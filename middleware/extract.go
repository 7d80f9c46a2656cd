package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

// Extractor returns the renewal credential carried by r, or "" when the
// source it inspects has none.
type Extractor func(r *http.Request) string

// CookieExtractor reads the renewal cookie.
func CookieExtractor(name string) Extractor {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

// HeaderExtractor reads `Authorization: Refresh <token>`.
func HeaderExtractor() Extractor {
	return func(r *http.Request) string {
		token, _ := schemeToken(r.Header.Get("Authorization"), "Refresh")
		return token
	}
}

// BodyExtractor reads the `refreshToken` field of a JSON body. The body is
// restored so later handlers can read it again.
func BodyExtractor() Extractor {
	return func(r *http.Request) string {
		if r.Body == nil || r.Body == http.NoBody {
			return ""
		}

		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(data))
		if err != nil || len(data) == 0 {
			return ""
		}

		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return ""
		}
		return strings.TrimSpace(body.RefreshToken)
	}
}

// DefaultExtractors is the resolution order used by Refresh and Logout:
// cookie, then header, then body.
func DefaultExtractors(cookieName string) []Extractor {
	return []Extractor{
		CookieExtractor(cookieName),
		HeaderExtractor(),
		BodyExtractor(),
	}
}

// ExtractRenewal runs extractors in order and returns the first non-empty
// credential.
func ExtractRenewal(r *http.Request, extractors []Extractor) string {
	for _, extract := range extractors {
		if token := extract(r); token != "" {
			return token
		}
	}
	return ""
}

func schemeToken(value, scheme string) (string, bool) {
	prefix := scheme + " "
	if len(value) <= len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(value[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
