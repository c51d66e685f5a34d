package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func loginRequest(e *echo.Echo, h echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/user/login", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestRateLimit_AllowsBurstThenRejects(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 3, ExpiresIn: time.Minute})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 3; i++ {
		if rec := loginRequest(e, h, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := loginRequest(e, h, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1000" {
		t.Errorf("expected Retry-After 1000, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Too many requests") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRateLimit_SeparateBucketsPerIP(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1, ExpiresIn: time.Minute})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, ip := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
		if rec := loginRequest(e, h, ip); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", ip, rec.Code)
		}
	}
	if rec := loginRequest(e, h, "10.0.0.1:1000"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected second request from 10.0.0.1 to be limited, got %d", rec.Code)
	}
}

func TestLoginRateLimitConfig(t *testing.T) {
	cfg := LoginRateLimitConfig()
	if cfg.BurstSize != 10 || cfg.ExpiresIn <= 0 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if got := cfg.retryAfter(); got != 6 {
		t.Errorf("expected Retry-After of 6s, got %d", got)
	}
}
