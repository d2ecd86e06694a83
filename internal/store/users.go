package store

import (
	"context"
	"fmt"
)

const userColumns = `user_id, email, hashed_password, role, is_active, password_change_required, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.Role, &u.IsActive,
		&u.PasswordChangeRequired, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

// CreateUser inserts a new account. Returns ErrAlreadyExists when the
// email is taken.
func (s *Store) CreateUser(ctx context.Context, email, hashedPassword, role string, passwordChangeRequired bool) (*User, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO users (email, hashed_password, role, password_change_required)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		email, hashedPassword, role, passwordChangeRequired)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches an account by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID fetches an account by primary key.
func (s *Store) GetUserByID(ctx context.Context, id int) (*User, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ListUsers returns all accounts ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.Role, &u.IsActive,
			&u.PasswordChangeRequired, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserPassword replaces the password hash and clears or sets the
// change-required flag.
func (s *Store) UpdateUserPassword(ctx context.Context, id int, hashedPassword string, changeRequired bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET hashed_password = $2, password_change_required = $3, updated_at = now()
		 WHERE user_id = $1`,
		id, hashedPassword, changeRequired)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserRole changes an account's role.
func (s *Store) UpdateUserRole(ctx context.Context, id int, role string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE user_id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserActive enables or disables an account.
func (s *Store) SetUserActive(ctx context.Context, id int, active bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = now() WHERE user_id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes an account. Project ownership rows are detached via
// ON DELETE SET NULL; access grants cascade.
func (s *Store) DeleteUser(ctx context.Context, id int) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
