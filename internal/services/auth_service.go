package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/models"
	pkgauth "github.com/jacobwhite/taskdeck/pkg/auth"
	pkglogger "github.com/jacobwhite/taskdeck/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// LoginGuard provides brute-force lockout around credential checks.
type LoginGuard interface {
	Check(ctx context.Context, email string) error
	RecordFailure(ctx context.Context, email string) error
	Clear(ctx context.Context, email string) error
}

// TokenRevoker records revoked token IDs until their natural expiry.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	guard       LoginGuard
	revoker     TokenRevoker
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, guard LoginGuard, revoker TokenRevoker, tm *auth.TokenManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		guard:       guard,
		revoker:     revoker,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

// Login authenticates a user and returns tokens. The lockout guard runs
// before credentials are checked, so a locked identity never consumes an
// attempt; every failed credential check records one.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*AuthResponse, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	if err := s.guard.Check(ctx, email); err != nil {
		var lockErr *models.LockoutError
		if errors.As(err, &lockErr) {
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				UserAgent:     userAgent,
				FailureReason: "account_locked",
				Success:       false,
			})
			return nil, err
		}
		s.logger.Error("lockout check failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Count the failure against the identity even for unknown
			// accounts, so probing cannot distinguish them.
			s.recordFailure(ctx, email)
			s.logger.Info("login failed: invalid credentials",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				UserAgent:     userAgent,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordFailure(ctx, email)
		s.logger.Info("login failed: invalid credentials",
			slog.String("email", pkglogger.SanitizedEmail(email)))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	if err := s.guard.Clear(ctx, email); err != nil {
		s.logger.Warn("failed to clear lockout state", slog.Any("error", err))
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if err := s.guard.RecordFailure(ctx, email); err != nil {
		s.logger.Error("failed to record auth failure", slog.Any("error", err))
	}
}

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         "user",
	}

	createdUser, err := s.repo.Create(ctx, user)
	if err != nil {
		s.logger.Error("failed to create user", slog.Any("error", err))
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(createdUser.ID, createdUser.Email, createdUser.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", createdUser.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(createdUser.ID, createdUser.Email, createdUser.Role)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", createdUser.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", createdUser.ID))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID, "", nil)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(createdUser),
	}, nil
}

// RefreshToken rotates a token pair. The old refresh token is revoked for
// its remaining lifetime so a stolen token cannot be replayed after use.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	revoked, err := s.revoker.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check token revocation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if revoked {
		s.logger.Warn("refresh attempt with revoked token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("user not found for token refresh", slog.String("user_id", claims.UserID))
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.revoker.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("failed to revoke used refresh token", slog.String("jti", claims.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	newRefreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))
	s.auditLogger.LogTokenEvent("token_refreshed", user.ID)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// Logout revokes the current access token
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	if err := s.revoker.RevokeToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("failed to revoke token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	s.auditLogger.LogTokenEvent("token_revoked", claims.UserID)
	return nil
}
