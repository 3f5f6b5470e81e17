package middleware

import (
	"context"
	"errors"
	"fortunex-api/internal/apperror"
	"fortunex-api/internal/service"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	SessionTokenHeader = "X-Session-Token"
	clientRefKey       = "client_ref"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Session authenticates the X-Session-Token header and stores the client code
// it belongs to on the echo context. Requests without a token continue with
// an empty client code; an unknown token is rejected.
func Session(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := strings.TrimSpace(c.Request().Header.Get(SessionTokenHeader))
			if token == "" {
				c.Set(clientRefKey, "")
				return next(c)
			}

			ref, err := resolver.Resolve(c.Request().Context(), token)
			if errors.Is(err, service.ErrUnknownSession) {
				return apperror.Unauthorized("Unknown session. Call POST /api/session for a new one.", err)
			}
			if err != nil {
				return err
			}

			c.Set(clientRefKey, ref)
			return next(c)
		}
	}
}

func GetClientRef(c echo.Context) string {
	ref, _ := c.Get(clientRefKey).(string)
	return ref
}
