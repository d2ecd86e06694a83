package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AppendChatMessage stores one conversation turn.
func (s *Store) AppendChatMessage(ctx context.Context, m ChatMessage) (*ChatMessage, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO chat_histories (chat_uuid, project_id, user_id, role, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, chat_uuid, project_id, user_id, role, content, created_at`,
		m.ChatUUID, m.ProjectID, m.UserID, m.Role, m.Content)

	var out ChatMessage
	if err := row.Scan(&out.ID, &out.ChatUUID, &out.ProjectID, &out.UserID,
		&out.Role, &out.Content, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("append chat message: %w", translateErr(err))
	}
	return &out, nil
}

// ListChatMessages returns the most recent messages of a conversation in
// chronological order. limit <= 0 returns the full history.
func (s *Store) ListChatMessages(ctx context.Context, chatUUID uuid.UUID, limit int) ([]ChatMessage, error) {
	query := `SELECT id, chat_uuid, project_id, user_id, role, content, created_at
	 FROM chat_histories WHERE chat_uuid = $1 ORDER BY id`
	args := []any{chatUUID}
	if limit > 0 {
		// Take the newest N, then re-sort ascending.
		query = `SELECT id, chat_uuid, project_id, user_id, role, content, created_at FROM (
		    SELECT id, chat_uuid, project_id, user_id, role, content, created_at
		    FROM chat_histories WHERE chat_uuid = $1 ORDER BY id DESC LIMIT $2
		 ) recent ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatUUID, &m.ProjectID, &m.UserID,
			&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListProjectChatMessages returns a page of a project's full chat
// history across conversations, oldest first.
func (s *Store) ListProjectChatMessages(ctx context.Context, projectID, limit, offset int) ([]ChatMessage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, chat_uuid, project_id, user_id, role, content, created_at
		 FROM chat_histories WHERE project_id = $1
		 ORDER BY id LIMIT $2 OFFSET $3`,
		projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list project chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatUUID, &m.ProjectID, &m.UserID,
			&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteChatMessagesByProject clears a project's chat history.
func (s *Store) DeleteChatMessagesByProject(ctx context.Context, projectID int) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chat_histories WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete chat messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListProjectChats returns the distinct conversation IDs of a project,
// newest first.
func (s *Store) ListProjectChats(ctx context.Context, projectID int) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT chat_uuid FROM chat_histories
		 WHERE project_id = $1
		 GROUP BY chat_uuid ORDER BY max(id) DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat uuid: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
