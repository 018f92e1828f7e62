package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users       repository.UserRepository
	technicians *TechnicianService
	tokenMgr    *auth.TokenManager
	hasher      auth.Hasher
	logger      *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Technicians *TechnicianService
	Logger      *zap.Logger
}

// RegisterInput describes a self-service sign up. Technician accounts must
// carry a Profile, which becomes their directory entry under the same id.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Profile  *TechnicianInput
}

// Session is an authenticated account with its bearer token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		technicians: deps.Technicians,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		hasher:      auth.NewHasher(cfg.Auth.BcryptCost),
		logger:      loggerOrNop(deps.Logger),
	}
}

// Register creates a client or technician account and returns a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if input.Role == "" {
		input.Role = domain.RoleClient
	}
	if input.Role != domain.RoleClient && input.Role != domain.RoleTechnician {
		return nil, apperrors.NewValidationError("role must be client or technician", map[string]any{"field": "role"})
	}
	if input.Role == domain.RoleTechnician && input.Profile == nil {
		return nil, apperrors.NewValidationError("technician accounts need a profile", map[string]any{"field": "technician"})
	}

	user, err := s.newUser(ctx, input.Name, input.Email, input.Password, input.Role)
	if err != nil {
		return nil, err
	}

	if input.Role == domain.RoleTechnician {
		if s.technicians == nil {
			return nil, apperrors.NewUnavailable("technician directory is not configured")
		}
		profile := *input.Profile
		profile.ID = user.ID
		if strings.TrimSpace(profile.Name) == "" {
			profile.Name = user.Name
		}
		if _, err := s.technicians.register(ctx, profile); err != nil {
			return nil, err
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "account", map[string]any{"email": user.Email})
	}
	s.logger.Info("account registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.session(user)
}

// EnsureAdmin creates the admin account when no account uses email. It is
// a no-op for an existing admin.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	existing, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			return nil, apperrors.NewConflict("email belongs to a non-admin account", map[string]any{"email": email})
		}
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.MapError(err)
	}

	user, err := s.newUser(ctx, name, email, password, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "account", map[string]any{"email": user.Email})
	}
	return user, nil
}

// Login authenticates an account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	stale, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if stale {
		s.logger.Debug("password hash uses an outdated cost", zap.String("user_id", user.ID))
	}
	return s.session(user)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) newUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	name = domain.NormalizeText(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("email is invalid", map[string]any{"field": "email"})
	}
	if err := auth.CheckPolicy(password); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"field": "password"})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}, nil
}

func (s *AuthService) session(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.Actor())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}
