package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/toolshed/marketplace/internal/domain/entities"
	"github.com/toolshed/marketplace/internal/domain/repositories"
	apperrors "github.com/toolshed/marketplace/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const sessionIssuer = "toolshed"

var errInvalidCredentials = apperrors.NewUnauthorizedError("invalid email or password")

// AuthService verifies credentials and issues signed session tokens
type AuthService struct {
	users  repositories.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users repositories.UserRepository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks the credentials of an active user and returns a session token
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *entities.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return "", nil, errInvalidCredentials
		}
		return "", nil, err
	}
	if !user.Active {
		return "", nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, errInvalidCredentials
	}

	token, err := s.issue(user.ID)
	if err != nil {
		return "", nil, apperrors.NewInternalError("failed to issue session", err)
	}
	return token, user, nil
}

// ExpiresAt returns the expiry of a token issued now
func (s *AuthService) ExpiresAt() time.Time {
	return s.now().Add(s.ttl)
}

func (s *AuthService) issue(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Authenticate resolves the active user a session token was issued to
func (s *AuthService) Authenticate(ctx context.Context, token string) (*entities.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, apperrors.NewUnauthorizedError("invalid session")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid session")
		}
		return nil, err
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorizedError("account is inactive")
	}
	return user, nil
}
