package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/auth"
)

// TokenResponse is the OAuth2-style login response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleToken exchanges form credentials for an access token. The form
// field is named username for OAuth2 password-flow compatibility but
// carries the account email.
func (s *Server) handleToken(c echo.Context) error {
	email := c.FormValue("username")
	password := c.FormValue("password")

	token, u, err := s.svc.Users.Login(c.Request().Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
		}
		return err
	}

	s.logger.Info("user logged in", zap.String("email", u.Email), zap.String("role", u.Role))
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// handleForgotPassword always answers 202 so the endpoint cannot be used
// to probe for registered emails.
func (s *Server) handleForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := s.svc.Users.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		s.logger.Error("password reset request failed", zap.Error(err))
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"message": "If an account with that email exists, a reset link has been sent.",
	})
}

type setPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// handleSetPassword finishes the account setup flow started by the
// emailed link.
func (s *Server) handleSetPassword(c echo.Context) error {
	return s.finishPasswordFlow(c, auth.PurposeSetup)
}

// handleResetPassword finishes the forgot-password flow.
func (s *Server) handleResetPassword(c echo.Context) error {
	return s.finishPasswordFlow(c, auth.PurposeReset)
}

func (s *Server) finishPasswordFlow(c echo.Context, purpose string) error {
	var req setPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	err := s.svc.Users.SetPasswordWithToken(c.Request().Context(), req.Token, purpose, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUnexpectedPurpose) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid or expired token")
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password has been set."})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

func (s *Server) handleChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	u := currentUser(c)
	err := s.svc.Users.ChangePassword(c.Request().Context(), u.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusBadRequest, "Current password is incorrect")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleCurrentUser returns the authenticated account.
func (s *Server) handleCurrentUser(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}
