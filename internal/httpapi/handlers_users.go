package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/store"
	"github.com/advrag/ragd/internal/user"
)

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
	Role     string `json:"role" validate:"required"`
}

// handleCreateUser registers an account. Without a password the user
// receives a setup email with a temporary password fallback.
func (s *Server) handleCreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u, err := s.svc.Users.Create(c.Request().Context(), user.CreateParams{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidRole):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrAlreadyExists):
			return echo.NewHTTPError(http.StatusConflict, "A user with this email already exists")
		}
		return err
	}

	s.logger.Info("user created", zap.String("email", u.Email), zap.String("role", u.Role))
	return c.JSON(http.StatusCreated, u)
}

// handleListUsers returns a page of accounts via skip/limit query
// parameters.
func (s *Server) handleListUsers(c echo.Context) error {
	users, err := s.svc.Users.List(c.Request().Context())
	if err != nil {
		return err
	}

	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", 100)
	if skip < 0 {
		skip = 0
	}
	if skip > len(users) {
		skip = len(users)
	}
	users = users[skip:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return c.JSON(http.StatusOK, users)
}

type updateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

func (s *Server) handleUpdateUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u, err := s.svc.Users.Update(c.Request().Context(), id, user.UpdateParams{
		Role:     req.Role,
		IsActive: req.IsActive,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidRole):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleDeleteUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	if err := s.svc.Users.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
