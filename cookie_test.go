package authcore

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRefreshCookieRoundTrip(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	engine := newTestEngine(t, cfg, users, nil)

	expiresAt := time.Now().Add(time.Hour)
	rec := httptest.NewRecorder()
	engine.SetRefreshCookie(rec, "opaque-refresh-value", expiresAt)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != cfg.Cookie.Name || c.Value != "opaque-refresh-value" {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if !c.HttpOnly || !c.Secure {
		t.Fatal("refresh cookie must be http-only and secure")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %v", c.SameSite)
	}

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.AddCookie(c)
	if got := engine.RefreshTokenFromRequest(req); got != "opaque-refresh-value" {
		t.Fatalf("expected the cookie value back, got %q", got)
	}

	// No cookie means an empty value, not an error.
	bare := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	if got := engine.RefreshTokenFromRequest(bare); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func TestClearRefreshCookie(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	engine := newTestEngine(t, cfg, users, nil)

	rec := httptest.NewRecorder()
	engine.ClearRefreshCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != "" || c.MaxAge != -1 {
		t.Fatalf("expected an expiring cookie, got %+v", c)
	}
}
