package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleUpload stores each file of a multipart upload. Invalid files are
// skipped so one bad file does not sink the batch.
func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files provided")
	}

	p := currentProject(c)
	uploaded := make([]any, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			s.logger.Warn("opening upload failed",
				zap.String("filename", fh.Filename),
				zap.Error(err))
			continue
		}

		res, err := s.svc.Files.SaveUpload(c.Request().Context(),
			p.ID, fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
		src.Close()
		if err != nil {
			s.logger.Warn("upload rejected",
				zap.String("filename", fh.Filename),
				zap.Error(err))
			continue
		}
		uploaded = append(uploaded, res)
	}

	if len(uploaded) == 0 {
		return c.JSON(http.StatusBadRequest, signalResponse(SignalFileUploadFailed, nil))
	}
	return c.JSON(http.StatusOK, signalResponse(SignalFileUploadSuccess, envelope{
		"uploaded_files_details": uploaded,
	}))
}

type processRequest struct {
	DoReset   bool `json:"do_reset"`
	ChunkSize int  `json:"chunk_size" validate:"omitempty,min=1"`
	// Accepted for frontend compatibility. The line-accumulating
	// chunker does not overlap chunks.
	OverlapSize int `json:"overlap_size" validate:"omitempty,min=0"`
}

// handleProcess chunks every uploaded asset of the project, optionally
// wiping previously derived state first.
func (s *Server) handleProcess(c echo.Context) error {
	var req processRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p := currentProject(c)
	res, err := s.svc.Processor.ProcessProject(c.Request().Context(), p, req.DoReset, req.ChunkSize)
	if err != nil {
		s.logger.Error("processing failed",
			zap.String("project", p.UUID.String()),
			zap.Error(err))
		return err
	}
	if res.ProcessedFiles == 0 {
		return c.JSON(http.StatusBadRequest, signalResponse(SignalNoFilesError, nil))
	}
	return c.JSON(http.StatusOK, signalResponse(SignalProcessingSuccess, envelope{
		"inserted_chunks": res.InsertedChunks,
		"processed_files": res.ProcessedFiles,
	}))
}
