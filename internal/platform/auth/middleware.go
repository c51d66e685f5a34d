package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
)

// Verifier checks a bearer token.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// JWTMiddleware requires a valid "Authorization: Bearer <token>" header and
// puts the caller's identity on both the echo and the request context.
func JWTMiddleware(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"message": "missing authorization header"})
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"message": "invalid authorization format"})
			}

			claims, err := v.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"message": "invalid token"})
			}

			setIdentity(c, claims.Subject, claims.Username)
			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as "dev-user".
// A bearer token, when present, is still verified.
func DevAuthMiddleware(v Verifier) echo.MiddlewareFunc {
	strict := JWTMiddleware(v)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return withToken(c)
			}
			setIdentity(c, "dev-user", "dev")
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, userID, username string) {
	c.Set(string(UserIDKey), userID)
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UsernameKey, username)
	c.SetRequest(c.Request().WithContext(ctx))
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func UsernameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(UsernameKey).(string)
	return name
}
