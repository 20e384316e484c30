package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// operatorMiddleware only lets through the tokens holding one of `roles`.
func operatorMiddleware(roles ...string) echo.MiddlewareFunc {
	required := make([]string, 0, len(roles))
	for _, role := range roles {
		if role != "" {
			required = append(required, role)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := getContextClaims(ctx); err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if contextHasAnyRole(ctx, required) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
