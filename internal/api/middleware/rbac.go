package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

const roleKey = "role"

// UserLookup resolves the authenticated user from the primary store.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// RBAC loads the caller's role and enforces role-based access control. It must
// run after Auth. users must not be served from the read cache.
func RBAC(users UserLookup, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := UserID(c)
			if id == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access denied. No token provided")
			}

			user, err := users.FindByID(c.Request().Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
				}
				return err
			}

			if _, ok := allowed[user.Role]; !ok {
				return domain.ErrForbidden
			}
			c.Set(roleKey, user.Role)
			return next(c)
		}
	}
}
