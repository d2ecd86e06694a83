package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/store"
)

func (s *Server) handleCreateProject(c echo.Context) error {
	p, err := s.svc.Projects.Create(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"project_uuid": p.UUID})
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.svc.Projects.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	p := currentProject(c)
	if err := s.svc.Projects.Delete(c.Request().Context(), p); err != nil {
		return err
	}
	s.logger.Info("project deleted", zap.String("project", p.UUID.String()))
	return c.NoContent(http.StatusNoContent)
}

type grantAccessRequest struct {
	UserID int `json:"user_id" validate:"required"`
}

func (s *Server) handleGrantAccess(c echo.Context) error {
	var req grantAccessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := s.svc.Projects.Grant(c.Request().Context(), currentProject(c).ID, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRevokeAccess(c echo.Context) error {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := s.svc.Projects.Revoke(c.Request().Context(), currentProject(c).ID, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListAccess(c echo.Context) error {
	ids, err := s.svc.Projects.Members(c.Request().Context(), currentProject(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user_ids": ids})
}

type appendChatRequest struct {
	ChatUUID uuid.UUID `json:"chat_uuid" validate:"required"`
	Role     string    `json:"role" validate:"required"`
	Content  string    `json:"content" validate:"required"`
}

func (s *Server) handleAppendChat(c echo.Context) error {
	var req appendChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u := currentUser(c)
	msg, err := s.svc.Projects.AddChatMessage(c.Request().Context(),
		currentProject(c), &u.ID, req.ChatUUID, req.Role, req.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleChatHistory(c echo.Context) error {
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	msgs, err := s.svc.Projects.ChatHistory(c.Request().Context(), currentProject(c), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleClearChat(c echo.Context) error {
	if _, err := s.svc.Projects.ClearChatHistory(c.Request().Context(), currentProject(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
