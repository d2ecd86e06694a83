package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const projectColumns = `project_id, project_uuid, owner_id, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var p Project
	if err := row.Scan(&p.ID, &p.UUID, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

// CreateProject inserts a new project owned by ownerID. The UUID is
// generated by the database.
func (s *Store) CreateProject(ctx context.Context, ownerID int) (*Project, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO projects (owner_id) VALUES ($1) RETURNING `+projectColumns, ownerID)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetProjectByUUID fetches a project by its external identifier.
func (s *Store) GetProjectByUUID(ctx context.Context, id uuid.UUID) (*Project, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE project_uuid = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjectsForUser returns projects visible to the user: all of them
// for admins, otherwise owned projects plus explicit grants.
func (s *Store) ListProjectsForUser(ctx context.Context, userID int, isAdmin bool) ([]Project, error) {
	var (
		query string
		args  []any
	)
	if isAdmin {
		query = `SELECT ` + projectColumns + ` FROM projects ORDER BY project_id`
	} else {
		query = `SELECT DISTINCT p.project_id, p.project_uuid, p.owner_id, p.created_at, p.updated_at
		 FROM projects p
		 LEFT JOIN project_access pa ON pa.project_id = p.project_id
		 WHERE p.owner_id = $1 OR pa.user_id = $1
		 ORDER BY p.project_id`
		args = []any{userID}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.UUID, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and, via cascades, its assets, chunks,
// grants, and chat history.
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE project_uuid = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasProjectAccess reports whether the user may act on the project. A
// single query covers the three grounds: admin role, ownership, or an
// explicit access grant.
func (s *Store) HasProjectAccess(ctx context.Context, userID int, projectID int) (bool, error) {
	var allowed bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM users u WHERE u.user_id = $1 AND u.role = 'admin'
		 ) OR EXISTS (
		    SELECT 1 FROM projects p WHERE p.project_id = $2 AND p.owner_id = $1
		 ) OR EXISTS (
		    SELECT 1 FROM project_access pa WHERE pa.project_id = $2 AND pa.user_id = $1
		 )`,
		userID, projectID).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("check project access: %w", err)
	}
	return allowed, nil
}

// GrantProjectAccess adds an access row. Granting twice is not an error.
func (s *Store) GrantProjectAccess(ctx context.Context, userID, projectID int) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO project_access (user_id, project_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, project_id) DO NOTHING`,
		userID, projectID)
	if err != nil {
		return fmt.Errorf("grant access: %w", err)
	}
	return nil
}

// RevokeProjectAccess removes an access row.
func (s *Store) RevokeProjectAccess(ctx context.Context, userID, projectID int) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM project_access WHERE user_id = $1 AND project_id = $2`,
		userID, projectID)
	if err != nil {
		return fmt.Errorf("revoke access: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProjectMembers returns user IDs with explicit grants on the project.
func (s *Store) ListProjectMembers(ctx context.Context, projectID int) ([]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id FROM project_access WHERE project_id = $1 ORDER BY user_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
