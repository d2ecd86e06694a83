// Package httpapi exposes the REST API: authentication, user and project
// management, file upload and processing, and the indexing and question
// answering endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/admin"
	"github.com/advrag/ragd/internal/auth"
	"github.com/advrag/ragd/internal/config"
	"github.com/advrag/ragd/internal/indexing"
	"github.com/advrag/ragd/internal/ingestion"
	"github.com/advrag/ragd/internal/llm"
	"github.com/advrag/ragd/internal/project"
	"github.com/advrag/ragd/internal/rag"
	"github.com/advrag/ragd/internal/store"
	"github.com/advrag/ragd/internal/user"
)

// Services bundles everything the handlers depend on.
type Services struct {
	Auth      *auth.Service
	Users     *user.Service
	Projects  *project.Service
	Files     *ingestion.Service
	Processor *ingestion.Processor
	Indexing  *indexing.Service
	RAG       *rag.Service
	Admin     *admin.Service
	Captioner llm.Captioner
	Store     *store.Store
}

// Server provides the HTTP API.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	svc    Services
	logger *zap.Logger
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

// NewServer builds the server and registers all routes.
func NewServer(cfg *config.Config, svc Services, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	// Per-file size limits are enforced again at write time; the body
	// limit leaves headroom for multipart framing and batched uploads.
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Files.MaxSizeMB*4)))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.App.FrontendURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, headerResetAPIKey},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", responseStatus(c, err)),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(metricsMiddleware)

	s := &Server{
		echo:   e,
		cfg:    cfg,
		svc:    svc,
		logger: logger,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/welcome", s.handleWelcome)

	// Authentication and password flows.
	v1.POST("/token", s.handleToken)
	v1.POST("/auth/forgot-password", s.handleForgotPassword)
	v1.POST("/auth/set-password", s.handleSetPassword)
	v1.POST("/auth/reset-password", s.handleResetPassword)
	v1.POST("/auth/change-password", s.handleChangePassword, s.authenticate)

	// User administration.
	users := v1.Group("/users", s.authenticate)
	users.GET("/me", s.handleCurrentUser)
	users.POST("", s.handleCreateUser, s.requireRoles(store.RoleAdmin))
	users.GET("", s.handleListUsers, s.requireRoles(store.RoleAdmin))
	users.PUT("/:user_id", s.handleUpdateUser, s.requireRoles(store.RoleAdmin))
	users.DELETE("/:user_id", s.handleDeleteUser, s.requireRoles(store.RoleAdmin))

	// Project lifecycle and chat history.
	projects := v1.Group("/projects", s.authenticate)
	projects.POST("", s.handleCreateProject, s.requireRoles(store.RoleUploader, store.RoleAdmin))
	projects.GET("", s.handleListProjects)
	projects.DELETE("/:project_uuid", s.handleDeleteProject,
		s.requireRoles(store.RoleUploader, store.RoleAdmin), s.withProject)
	projects.POST("/:project_uuid/access", s.handleGrantAccess,
		s.requireRoles(store.RoleUploader, store.RoleAdmin), s.withProject)
	projects.DELETE("/:project_uuid/access/:user_id", s.handleRevokeAccess,
		s.requireRoles(store.RoleUploader, store.RoleAdmin), s.withProject)
	projects.GET("/:project_uuid/access", s.handleListAccess,
		s.requireRoles(store.RoleUploader, store.RoleAdmin), s.withProject)
	projects.POST("/:project_uuid/chat_history", s.handleAppendChat, s.withProject)
	projects.GET("/:project_uuid/chat_history", s.handleChatHistory, s.withProject)
	projects.DELETE("/:project_uuid/chat_history", s.handleClearChat,
		s.requireRoles(store.RoleUploader, store.RoleAdmin), s.withProject)

	// Data ingestion.
	data := v1.Group("/data", s.authenticate, s.requireRoles(store.RoleUploader, store.RoleAdmin))
	data.POST("/upload/:project_uuid", s.handleUpload, s.withProject)
	data.POST("/process/:project_uuid", s.handleProcess, s.withProject)

	// Indexing and question answering.
	nlp := v1.Group("/nlp", s.authenticate)
	nlp.POST("/index/push/:project_uuid", s.handleIndexPush,
		s.requireRoles(store.RoleUploader, store.RoleAdmin), s.withProject)
	nlp.GET("/index/info/:project_uuid", s.handleIndexInfo, s.withProject)
	nlp.POST("/index/search/:project_uuid", s.handleSearch, s.withProject)
	nlp.POST("/index/answer/:project_uuid", s.handleAnswer, s.withProject)

	v1.POST("/vision/explain-image", s.handleExplainImage, s.authenticate)

	// Destructive admin reset, guarded by a dedicated API key.
	v1.DELETE("/admin/nuke-and-rebuild-db", s.handleNuke)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// WelcomeResponse identifies the running application.
type WelcomeResponse struct {
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
}

func (s *Server) handleWelcome(c echo.Context) error {
	return c.JSON(http.StatusOK, WelcomeResponse{
		AppName:    s.cfg.App.Name,
		AppVersion: s.cfg.App.Version,
	})
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// responseStatus resolves the status a request is answered with. When a
// handler returns an error the response is not yet committed and
// c.Response().Status still reads 200, so the status must come from the
// error itself.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
