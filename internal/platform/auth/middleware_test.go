package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret-key-for-unit-tests-only"

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	return NewTokenIssuer(testSecret, time.Hour)
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, error, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})(c)
	return c, err, called
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err, called := runMiddleware(t, JWTMiddleware(newTestIssuer(t)), "")
	assertUnauthorized(t, err)
	if called {
		t.Error("handler should not run")
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err, _ := runMiddleware(t, JWTMiddleware(newTestIssuer(t)), tt.header)
			assertUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	iss := newTestIssuer(t)
	token, _, err := iss.Issue("user-42", "nurse1", "Asha Patil")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	c, err, called := runMiddleware(t, JWTMiddleware(iss), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected handler to be called")
	}
	if got := UserIDFromContext(c.Request().Context()); got != "user-42" {
		t.Errorf("expected user-42, got %q", got)
	}
	if got := UsernameFromContext(c.Request().Context()); got != "nurse1" {
		t.Errorf("expected nurse1, got %q", got)
	}
	if got, _ := c.Get("user_id").(string); got != "user-42" {
		t.Errorf("expected user_id on echo context, got %q", got)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	other := NewTokenIssuer("some-other-secret", time.Hour)
	token, _, _ := other.Issue("user-1", "x", "X")

	_, err, _ := runMiddleware(t, JWTMiddleware(newTestIssuer(t)), "Bearer "+token)
	assertUnauthorized(t, err)
}

func TestDevAuthMiddleware_NoHeader(t *testing.T) {
	c, err, called := runMiddleware(t, DevAuthMiddleware(newTestIssuer(t)), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected handler to be called")
	}
	if got := UserIDFromContext(c.Request().Context()); got != "dev-user" {
		t.Errorf("expected dev-user, got %q", got)
	}
}

func TestDevAuthMiddleware_StillVerifiesPresentedToken(t *testing.T) {
	_, err, called := runMiddleware(t, DevAuthMiddleware(newTestIssuer(t)), "Bearer bogus")
	assertUnauthorized(t, err)
	if called {
		t.Error("handler should not run with a bad token")
	}
}
