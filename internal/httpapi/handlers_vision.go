package httpapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleExplainImage captions an uploaded image on demand, without
// registering it as a project asset.
func (s *Server) handleExplainImage(c echo.Context) error {
	if s.svc.Captioner == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "No vision backend is configured")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file required")
	}
	contentType := fh.Header.Get(echo.HeaderContentType)
	if !isImageContentType(contentType) {
		return echo.NewHTTPError(http.StatusBadRequest, "file must be an image")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file required")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, s.cfg.Files.MaxSizeBytes()))
	if err != nil {
		return err
	}

	caption, err := s.svc.Captioner.CaptionImage(c.Request().Context(),
		contentType, data, c.FormValue("instruction"))
	if err != nil {
		s.logger.Error("image captioning failed",
			zap.String("filename", fh.Filename),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Image captioning failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"caption": caption})
}

func isImageContentType(contentType string) bool {
	return len(contentType) > 6 && contentType[:6] == "image/"
}
