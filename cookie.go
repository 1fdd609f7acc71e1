package authcore

import (
	"net/http"
	"time"
)

// SetRefreshCookie writes the raw refresh value as an HTTP-only cookie
// expiring with the session row. The raw value never belongs in a response
// body.
func (e *Engine) SetRefreshCookie(w http.ResponseWriter, rawValue string, expiresAt time.Time) {
	if e == nil {
		return
	}
	cfg := e.config.Cookie
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    rawValue,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// ClearRefreshCookie expires the refresh cookie. Logout calls this
// unconditionally, matched session or not.
func (e *Engine) ClearRefreshCookie(w http.ResponseWriter) {
	if e == nil {
		return
	}
	cfg := e.config.Cookie
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

// RefreshTokenFromRequest extracts the raw refresh value from the request
// cookie, empty when absent.
func (e *Engine) RefreshTokenFromRequest(r *http.Request) string {
	if e == nil || r == nil {
		return ""
	}
	c, err := r.Cookie(e.config.Cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
