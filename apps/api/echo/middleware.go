package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
)

// authMiddleware only lets requests carrying a valid access token through.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(jwtConfig(s.deps.Conf))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMiddleware(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			// refresh tokens are only good for /token-refresh
			if claims.TokenType != tokenTypeAccess {
				return errInvalidToken
			}
			return next(ctx)
		})
	}
}

// roleMiddleware restricts a route to the users holding any of `roles`.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
