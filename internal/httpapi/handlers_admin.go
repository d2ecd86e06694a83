package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// headerResetAPIKey guards the nuke endpoint independently of JWT auth,
// so a leaked user token can never wipe the system.
const headerResetAPIKey = "X-Reset-API-Key"

// handleNuke wipes all uploaded files and application tables. User
// accounts survive so admins can log back in after the restart.
func (s *Server) handleNuke(c echo.Context) error {
	want := s.cfg.Auth.AdminResetAPIKey.Value()
	got := c.Request().Header.Get(headerResetAPIKey)
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return echo.NewHTTPError(http.StatusForbidden, "Invalid or missing X-Reset-API-Key.")
	}

	s.logger.Warn("admin nuke requested", zap.String("remote", c.RealIP()))
	res, err := s.svc.Admin.NukeAndRebuild(c.Request().Context())
	if err != nil {
		s.logger.Error("nuke failed", zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, res)
}
