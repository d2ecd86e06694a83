// Package auth implements password hashing and JWT issuing/verification.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/advrag/ragd/internal/config"
)

// Token purposes. Access tokens carry no purpose claim; single-use flows
// are scoped by one so a setup link can never be replayed as a login.
const (
	PurposeSetup = "password_setup"
	PurposeReset = "password_reset"
)

// Lifetimes for purpose tokens, matching the promises made in the emails
// that carry them.
const (
	SetupTokenTTL = 24 * time.Hour
	ResetTokenTTL = 15 * time.Minute
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnexpectedPurpose   = errors.New("token purpose mismatch")
	ErrPasswordHashFailure = errors.New("password hashing failed")
)

// Claims is the decoded content of a ragd token.
type Claims struct {
	Email   string
	Role    string
	UserID  int
	Purpose string
}

type tokenClaims struct {
	Role    string `json:"role,omitempty"`
	UID     int    `json:"uid,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens and hashes passwords.
type Service struct {
	secret    []byte
	method    jwt.SigningMethod
	algorithm string
	accessTTL time.Duration
}

// NewService builds a Service from auth config. The algorithm has been
// validated by config.Validate to be one of the HMAC family.
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret:    []byte(cfg.SecretKey.Value()),
		method:    jwt.GetSigningMethod(cfg.Algorithm),
		algorithm: cfg.Algorithm,
		accessTTL: cfg.AccessTokenTTL(),
	}
}

// HashPassword produces a bcrypt hash at the default cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPasswordHashFailure, err)
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against its stored hash.
func (s *Service) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CreateAccessToken issues a login token with the configured lifetime.
func (s *Service) CreateAccessToken(email, role string, userID int) (string, error) {
	return s.sign(tokenClaims{
		Role: role,
		UID:  userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// CreatePurposeToken issues a short-lived token scoped to one flow, such
// as account setup or password reset.
func (s *Service) CreatePurposeToken(email, purpose string, ttl time.Duration) (string, error) {
	return s.sign(tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

func (s *Service) sign(claims tokenClaims) (string, error) {
	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, expiry, and algorithm, and returns the
// decoded claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.algorithm}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &Claims{
		Email:   claims.Subject,
		Role:    claims.Role,
		UserID:  claims.UID,
		Purpose: claims.Purpose,
	}, nil
}

// ParsePurposeToken verifies a token and requires the given purpose.
func (s *Service) ParsePurposeToken(tokenString, purpose string) (*Claims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: want %q", ErrUnexpectedPurpose, purpose)
	}
	return claims, nil
}
