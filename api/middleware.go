package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/vigia-social/vigia/models"
)

const userContextKey = "vigia-user"

// authMiddleware resolves the bearer token to a stored user and stashes it on
// the request context.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(auth, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		uid, err := s.VerifyToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}

		var user models.User
		if err := s.db.First(&user, uint(uid)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
			}
			return err
		}

		c.Set(userContextKey, &user)
		return next(c)
	}
}

func (s *Server) getUser(c echo.Context) (*models.User, error) {
	u, ok := c.Get(userContextKey).(*models.User)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "auth required")
	}
	return u, nil
}
