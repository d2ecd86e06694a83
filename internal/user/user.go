// Package user implements account lifecycle: login, admin-managed CRUD,
// and the password setup and reset flows.
package user

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/auth"
	"github.com/advrag/ragd/internal/email"
	"github.com/advrag/ragd/internal/store"
)

// Service errors surfaced to handlers.
var (
	ErrInvalidRole = errors.New("invalid role")
)

// Service manages accounts.
type Service struct {
	store  *store.Store
	auth   *auth.Service
	mailer *email.Mailer
	logger *zap.Logger
}

// NewService wires account management.
func NewService(st *store.Store, authSvc *auth.Service, mailer *email.Mailer, logger *zap.Logger) *Service {
	return &Service{store: st, auth: authSvc, mailer: mailer, logger: logger}
}

// Login verifies credentials and returns an access token. Inactive
// accounts and unknown emails fail identically so login leaks nothing.
func (s *Service) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, auth.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !u.IsActive || !s.auth.VerifyPassword(password, u.HashedPassword) {
		return "", nil, auth.ErrInvalidCredentials
	}

	token, err := s.auth.CreateAccessToken(u.Email, u.Role, u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// CreateParams describes a new account. An empty Password generates a
// temporary one and triggers the setup email flow.
type CreateParams struct {
	Email    string
	Password string
	Role     string
}

// Create registers an account. When no password is supplied a temporary
// password is generated, the account is flagged for a forced change, and
// the user is mailed a setup link plus the temporary password fallback.
func (s *Service) Create(ctx context.Context, params CreateParams) (*store.User, error) {
	if !store.ValidRole(params.Role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, params.Role)
	}

	password := params.Password
	generated := password == ""
	if generated {
		var err error
		password, err = randomPassword(12)
		if err != nil {
			return nil, err
		}
	}

	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, params.Email, hash, params.Role, generated)
	if err != nil {
		return nil, err
	}

	if generated {
		s.sendSetupMails(ctx, u.Email, password)
	}
	return u, nil
}

// sendSetupMails delivers the setup link and the temporary password.
// Mail failures are logged, not returned; the account already exists and
// an admin can trigger a reset.
func (s *Service) sendSetupMails(ctx context.Context, to, tempPassword string) {
	token, err := s.auth.CreatePurposeToken(to, auth.PurposeSetup, auth.SetupTokenTTL)
	if err != nil {
		s.logger.Error("creating setup token failed", zap.Error(err))
		return
	}
	if err := s.mailer.SendAccountSetup(ctx, to, token); err != nil {
		s.logger.Error("sending setup email failed", zap.String("to", to), zap.Error(err))
	}
	if err := s.mailer.SendTemporaryPassword(ctx, to, tempPassword); err != nil {
		s.logger.Error("sending temporary password failed", zap.String("to", to), zap.Error(err))
	}
}

// UpdateParams carries optional account changes.
type UpdateParams struct {
	Role     *string
	IsActive *bool
	Password *string
}

// Update applies the set fields and returns the updated account.
func (s *Service) Update(ctx context.Context, id int, params UpdateParams) (*store.User, error) {
	if params.Role != nil {
		if !store.ValidRole(*params.Role) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, *params.Role)
		}
		if err := s.store.UpdateUserRole(ctx, id, *params.Role); err != nil {
			return nil, err
		}
	}
	if params.IsActive != nil {
		if err := s.store.SetUserActive(ctx, id, *params.IsActive); err != nil {
			return nil, err
		}
	}
	if params.Password != nil {
		hash, err := s.auth.HashPassword(*params.Password)
		if err != nil {
			return nil, err
		}
		if err := s.store.UpdateUserPassword(ctx, id, hash, true); err != nil {
			return nil, err
		}
	}
	return s.store.GetUserByID(ctx, id)
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int) error {
	return s.store.DeleteUser(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]store.User, error) {
	return s.store.ListUsers(ctx)
}

// ChangePassword lets an authenticated user replace their own password
// after proving the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int, current, newPassword string) error {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.auth.VerifyPassword(current, u.HashedPassword) {
		return auth.ErrInvalidCredentials
	}
	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, userID, hash, false)
}

// RequestPasswordReset mails a reset link. Unknown and inactive accounts
// are ignored without error so the endpoint cannot be used to probe for
// registered emails.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	u, err := s.store.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !u.IsActive {
		return nil
	}

	token, err := s.auth.CreatePurposeToken(u.Email, auth.PurposeReset, auth.ResetTokenTTL)
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, u.Email, token)
}

// SetPasswordWithToken finishes the setup or reset flow. The token's
// purpose must match the flow the frontend is driving.
func (s *Service) SetPasswordWithToken(ctx context.Context, token, purpose, newPassword string) error {
	claims, err := s.auth.ParsePurposeToken(token, purpose)
	if err != nil {
		return err
	}
	u, err := s.store.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.ErrInvalidToken
		}
		return err
	}
	hash, err := s.auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, u.ID, hash, false)
}

// EnsureInitialAdmin seeds the first admin account at startup. An
// existing account with the email is left untouched.
func (s *Service) EnsureInitialAdmin(ctx context.Context, emailAddr, password string) error {
	if emailAddr == "" || password == "" {
		return nil
	}
	_, err := s.store.GetUserByEmail(ctx, emailAddr)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.store.CreateUser(ctx, emailAddr, hash, store.RoleAdmin, false); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("initial admin account created", zap.String("email", emailAddr))
	return nil
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomPassword draws length characters from a crypto source.
func randomPassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
