package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// TokenIssuer creates session tokens for authenticated accounts.
type TokenIssuer interface {
	Generate(email string) (string, error)
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
}

// AuthService handles account registration, login and password changes.
type AuthService struct {
	users    domain.UserRepository
	tokens   TokenIssuer
	validate *validator.Validate
	cost     int
	metrics  *metrics.AnalysisMetrics
	logger   *slog.Logger
}

func NewAuthService(users domain.UserRepository, tokens TokenIssuer, m *metrics.AnalysisMetrics, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
		metrics:  m,
		logger:   logger.With("component", "auth_service"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) check(email, password string) error {
	if err := s.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidInput, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Register creates an account. An existing email yields domain.ErrConflict.
func (s *AuthService) Register(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if err := s.check(email, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return err
	}
	s.logger.Info("User registered", "user_id", user.ID)
	return nil
}

// Login checks the password and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.countLogin("unknown_user")
			return "", ErrInvalidCredentials
		}
		s.countLogin("error")
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.countLogin("bad_password")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.Email)
	if err != nil {
		s.countLogin("error")
		return "", err
	}
	s.countLogin("success")
	return token, nil
}

// ChangePassword sets a new password for an existing account.
func (s *AuthService) ChangePassword(ctx context.Context, email, newPassword string) error {
	email = normalizeEmail(email)
	if err := s.check(email, newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, email, string(hash)); err != nil {
		return err
	}
	s.logger.Info("Password updated", "email", email)
	return nil
}

func (s *AuthService) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}
