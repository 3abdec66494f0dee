package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gravadigital/polls-api/internal/auth"
	"github.com/gravadigital/polls-api/internal/domain/account"
	"github.com/gravadigital/polls-api/internal/logger"
	"github.com/gravadigital/polls-api/internal/storage/postgres"
	"github.com/gravadigital/polls-api/internal/validation"
)

// AuthService maneja el registro y el inicio de sesión de usuarios
type AuthService struct {
	users     postgres.UserRepository
	hasher    *auth.PasswordHasher
	sessions  *auth.SessionManager
	validator validation.UserValidation
	log       *log.Logger
}

// NewAuthService crea una nueva instancia del servicio de autenticación
func NewAuthService(users postgres.UserRepository, hasher *auth.PasswordHasher, sessions *auth.SessionManager) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		validator: validation.UserValidation{},
		log:       logger.Auth(),
	}
}

// RegisterRequest representa una solicitud de registro
type RegisterRequest struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// LoginRequest representa una solicitud de inicio de sesión
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Session is a signed-in user together with the token for the session cookie
type Session struct {
	User      *account.User `json:"user"`
	Token     string        `json:"-"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Register creates an account and signs it in
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if err := s.validator.ValidateUserName(req.Name); err != nil {
		return nil, &ValidationError{err}
	}
	if err := s.validator.ValidateUserEmail(req.Email); err != nil {
		return nil, &ValidationError{err}
	}
	if err := s.validator.ValidatePassword(req.Password); err != nil {
		return nil, &ValidationError{err}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := account.NewUser(req.Name, req.Email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("User registered", "user_id", user.ID)
	return s.issue(user)
}

// Login checks the credentials and starts a session. Unknown emails and wrong
// passwords both yield auth.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			s.log.Info("Login for unknown email")
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.log.Info("Login with wrong password", "user_id", user.ID)
		return nil, err
	}

	s.log.Info("User logged in", "user_id", user.ID)
	return s.issue(user)
}

func (s *AuthService) issue(user *account.User) (*Session, error) {
	token, expiresAt, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// ValidationError marks user-correctable input problems outside the poll domain
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
