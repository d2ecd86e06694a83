// Ragd is the backend for the document question answering application.
//
// It serves the REST API for authentication, project and file management,
// chunk processing, vector indexing, and retrieval augmented generation.
//
// Configuration is loaded from environment variables. See internal/config
// for the full surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/admin"
	"github.com/advrag/ragd/internal/auth"
	"github.com/advrag/ragd/internal/config"
	"github.com/advrag/ragd/internal/email"
	"github.com/advrag/ragd/internal/httpapi"
	"github.com/advrag/ragd/internal/indexing"
	"github.com/advrag/ragd/internal/ingestion"
	"github.com/advrag/ragd/internal/llm"
	"github.com/advrag/ragd/internal/llm/templates"
	"github.com/advrag/ragd/internal/logging"
	"github.com/advrag/ragd/internal/postgres"
	"github.com/advrag/ragd/internal/project"
	"github.com/advrag/ragd/internal/rag"
	"github.com/advrag/ragd/internal/store"
	"github.com/advrag/ragd/internal/tabular"
	"github.com/advrag/ragd/internal/telemetry"
	"github.com/advrag/ragd/internal/user"
	"github.com/advrag/ragd/internal/vectordb"
)

func main() {
	flag.Parse()
	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			fmt.Printf("ragd %s\n", config.Default().App.Version)
			os.Exit(0)
		case "migrate":
			if err := runMigrations(); err != nil {
				log.Fatalf("ragd migrate: %v", err)
			}
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			os.Exit(2)
		}
	}

	if err := run(); err != nil {
		log.Fatalf("ragd: %v", err)
	}
}

// runMigrations applies pending migrations and exits, for deploy hooks
// that migrate separately from serving.
func runMigrations() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync(logger)
	return postgres.Migrate(cfg.Postgres.URL(), logger)
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync(logger)
	logger.Info("starting ragd",
		zap.String("version", cfg.App.Version),
		zap.Int("port", cfg.Server.Port))

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Migrations run before the listener: serving against a stale schema
	// is worse than refusing to start.
	if err := postgres.Migrate(cfg.Postgres.URL(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	st := store.New(pool)

	vdb, err := vectordb.New(cfg.VectorDB, pool, logger)
	if err != nil {
		return fmt.Errorf("init vector db: %w", err)
	}

	generator, err := llm.NewGenerator(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("init generation backend: %w", err)
	}
	embedder, err := llm.NewEmbedder(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("init embedding backend: %w", err)
	}

	var captioner llm.Captioner
	if cfg.LLM.VisionBackend != "" {
		captioner, err = llm.NewCaptioner(ctx, cfg.LLM)
		if err != nil {
			return fmt.Errorf("init vision backend: %w", err)
		}
	} else {
		logger.Warn("no vision backend configured, image uploads will not be captioned")
	}

	prompts := templates.NewParser(cfg.Locale.Primary, cfg.Locale.Default)
	mailer := email.NewMailer(cfg.SMTP, cfg.App.FrontendURL, logger)
	authSvc := auth.NewService(cfg.Auth)

	files := ingestion.NewService(cfg.Files, st, captioner, logger)
	loader := tabular.NewLoader(pool, logger)

	users := user.NewService(st, authSvc, mailer, logger)
	if err := users.EnsureInitialAdmin(ctx,
		cfg.Auth.InitialAdminEmail, cfg.Auth.InitialAdminPassword.Value()); err != nil {
		return fmt.Errorf("seed initial admin: %w", err)
	}

	srv, err := httpapi.NewServer(cfg, httpapi.Services{
		Auth:      authSvc,
		Users:     users,
		Projects:  project.NewService(st, files, logger),
		Files:     files,
		Processor: ingestion.NewProcessor(files, loader, st, vdb, embedder.Size(), cfg.Files.DefaultChunkSize, logger),
		Indexing:  indexing.NewService(st, vdb, embedder, logger),
		RAG:       rag.NewService(generator, embedder, vdb, prompts, st, logger),
		Admin:     admin.NewService(pool, files, logger),
		Captioner: captioner,
		Store:     st,
	}, logger)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
