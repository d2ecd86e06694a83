package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/project"
	"github.com/advrag/ragd/internal/store"
)

// Context keys for values resolved by middleware.
const (
	contextKeyUser    = "ragd.user"
	contextKeyProject = "ragd.project"
)

const msgInvalidCredentials = "Could not validate credentials"

// authenticate resolves the bearer token to an active account. The same
// 401 is returned for every failure mode so tokens cannot be probed.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidCredentials)
		}

		claims, err := s.svc.Auth.ParseToken(token)
		if err != nil || claims.Purpose != "" {
			return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidCredentials)
		}

		u, err := s.svc.Store.GetUserByEmail(c.Request().Context(), claims.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidCredentials)
			}
			return err
		}
		if !u.IsActive {
			return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidCredentials)
		}

		c.Set(contextKeyUser, u)
		return next(c)
	}
}

// requireRoles allows only the listed roles past.
func (s *Server) requireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := currentUser(c)
			for _, role := range roles {
				if u.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				"The user does not have the required privileges")
		}
	}
}

// withProject resolves the project_uuid path parameter and checks the
// user's access. Unknown projects look exactly like denied ones.
func (s *Server) withProject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("project_uuid"))
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "Not authorized to access this project")
		}

		p, err := s.svc.Projects.Authorize(c.Request().Context(), currentUser(c), id)
		if err != nil {
			if errors.Is(err, project.ErrForbidden) {
				return echo.NewHTTPError(http.StatusForbidden, "Not authorized to access this project")
			}
			s.logger.Error("project authorization failed",
				zap.String("project", id.String()),
				zap.Error(err))
			return err
		}

		c.Set(contextKeyProject, p)
		return next(c)
	}
}

func currentUser(c echo.Context) *store.User {
	u, _ := c.Get(contextKeyUser).(*store.User)
	return u
}

func currentProject(c echo.Context) *store.Project {
	p, _ := c.Get(contextKeyProject).(*store.Project)
	return p
}
