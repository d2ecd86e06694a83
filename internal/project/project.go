// Package project manages tenant workspaces, access grants, and their
// chat histories.
package project

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/ingestion"
	"github.com/advrag/ragd/internal/store"
)

// ErrForbidden is returned when a user may not act on a project. It is
// returned for unknown projects too, so probing UUIDs reveals nothing.
var ErrForbidden = errors.New("not authorized to access project")

// Service manages projects on behalf of handlers.
type Service struct {
	store  *store.Store
	files  *ingestion.Service
	logger *zap.Logger
}

// NewService wires project management. files is used to remove uploads
// when a project is deleted.
func NewService(st *store.Store, files *ingestion.Service, logger *zap.Logger) *Service {
	return &Service{store: st, files: files, logger: logger}
}

// Create makes a new project owned by the user.
func (s *Service) Create(ctx context.Context, owner *store.User) (*store.Project, error) {
	p, err := s.store.CreateProject(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("project created",
		zap.String("project", p.UUID.String()),
		zap.String("owner", owner.Email))
	return p, nil
}

// List returns the projects the user may see.
func (s *Service) List(ctx context.Context, user *store.User) ([]store.Project, error) {
	return s.store.ListProjectsForUser(ctx, user.ID, user.Role == store.RoleAdmin)
}

// Authorize resolves a project UUID and verifies the user's access.
// Missing projects and denied access both return ErrForbidden.
func (s *Service) Authorize(ctx context.Context, user *store.User, projectUUID uuid.UUID) (*store.Project, error) {
	p, err := s.store.GetProjectByUUID(ctx, projectUUID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrForbidden, projectUUID)
		}
		return nil, err
	}

	allowed, err := s.store.HasProjectAccess(ctx, user.ID, p.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, projectUUID)
	}
	return p, nil
}

// Delete removes a project with its database state and uploaded files.
func (s *Service) Delete(ctx context.Context, project *store.Project) error {
	if err := s.store.DeleteProject(ctx, project.UUID); err != nil {
		return err
	}
	if err := s.files.RemoveProjectFiles(project.ID); err != nil {
		s.logger.Warn("removing project files failed",
			zap.String("project", project.UUID.String()),
			zap.Error(err))
	}
	return nil
}

// Grant gives a user explicit access to a project.
func (s *Service) Grant(ctx context.Context, projectID, userID int) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.store.GrantProjectAccess(ctx, userID, projectID)
}

// Revoke removes a user's explicit access.
func (s *Service) Revoke(ctx context.Context, projectID, userID int) error {
	return s.store.RevokeProjectAccess(ctx, userID, projectID)
}

// Members lists user IDs with explicit grants.
func (s *Service) Members(ctx context.Context, projectID int) ([]int, error) {
	return s.store.ListProjectMembers(ctx, projectID)
}

// AddChatMessage appends one turn to the project's chat history.
func (s *Service) AddChatMessage(ctx context.Context, project *store.Project, userID *int, chatUUID uuid.UUID, role, content string) (*store.ChatMessage, error) {
	if role != store.ChatRoleUser && role != store.ChatRoleAssistant {
		return nil, fmt.Errorf("unknown chat role %q", role)
	}
	return s.store.AppendChatMessage(ctx, store.ChatMessage{
		ChatUUID:  chatUUID,
		ProjectID: project.ID,
		UserID:    userID,
		Role:      role,
		Content:   content,
	})
}

// ChatHistory returns a page of the project's chat history.
func (s *Service) ChatHistory(ctx context.Context, project *store.Project, limit, offset int) ([]store.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListProjectChatMessages(ctx, project.ID, limit, offset)
}

// ClearChatHistory removes the project's chat history and returns the
// number of messages deleted.
func (s *Service) ClearChatHistory(ctx context.Context, project *store.Project) (int64, error) {
	return s.store.DeleteChatMessagesByProject(ctx, project.ID)
}
