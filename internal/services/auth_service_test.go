package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobwhite/taskdeck/internal/auth"
	"github.com/jacobwhite/taskdeck/internal/models"
	pkgauth "github.com/jacobwhite/taskdeck/pkg/auth"
	pkglogger "github.com/jacobwhite/taskdeck/pkg/logger"
)

const testJWTSecret = "test-secret-for-auth-service-tests"

func newAuthService(repo UserRepository, guard LoginGuard, revoker TokenRevoker) *AuthService {
	logger := slog.Default()
	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(repo, guard, revoker, tm, logger, pkglogger.NewAuditLogger(logger))
}

func testUserWithPassword(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	now := time.Now()
	return &models.User{
		ID:           "user1",
		Email:        "user@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		Role:         "user",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ============================================================================
// Login
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	user := testUserWithPassword(t, "SecurePassword123!")
	cleared := false

	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			assert.Equal(t, "user@example.com", email)
			return user, nil
		},
	}
	guard := &MockLoginGuard{
		ClearFunc: func(ctx context.Context, email string) error {
			cleared = true
			return nil
		},
	}

	svc := newAuthService(repo, guard, &MockTokenRevoker{})
	resp, err := svc.Login(context.Background(), "User@Example.com", "SecurePassword123!", "203.0.113.9", "go-test")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "user1", resp.User.ID)
	assert.True(t, cleared, "successful login must clear lockout state")
}

func TestAuthService_Login_WrongPasswordRecordsFailure(t *testing.T) {
	user := testUserWithPassword(t, "SecurePassword123!")
	recorded := false

	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	}
	guard := &MockLoginGuard{
		RecordFailureFunc: func(ctx context.Context, email string) error {
			recorded = true
			return nil
		},
	}

	svc := newAuthService(repo, guard, &MockTokenRevoker{})
	_, err := svc.Login(context.Background(), "user@example.com", "wrong-password", "203.0.113.9", "go-test")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.True(t, recorded)
}

func TestAuthService_Login_UnknownEmailRecordsFailure(t *testing.T) {
	recorded := false
	guard := &MockLoginGuard{
		RecordFailureFunc: func(ctx context.Context, email string) error {
			recorded = true
			return nil
		},
	}

	svc := newAuthService(&MockUserRepository{}, guard, &MockTokenRevoker{})
	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever", "203.0.113.9", "go-test")

	assert.ErrorIs(t, err, models.ErrUnauthorized, "unknown email must look identical to wrong password")
	assert.True(t, recorded, "unknown identities still consume an attempt")
}

func TestAuthService_Login_LockedAccountRejectedBeforeCredentials(t *testing.T) {
	credentialsChecked := false
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			credentialsChecked = true
			return nil, models.ErrNotFound
		},
	}
	guard := &MockLoginGuard{
		CheckFunc: func(ctx context.Context, email string) error {
			return &models.LockoutError{RetryAfter: 10 * time.Minute}
		},
	}

	svc := newAuthService(repo, guard, &MockTokenRevoker{})
	_, err := svc.Login(context.Background(), "user@example.com", "SecurePassword123!", "203.0.113.9", "go-test")

	assert.ErrorIs(t, err, models.ErrAccountLocked)
	var lockErr *models.LockoutError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, 10*time.Minute, lockErr.RetryAfter)
	assert.False(t, credentialsChecked, "locked identity must not reach credential verification")
}

func TestAuthService_Login_EmptyEmail(t *testing.T) {
	svc := newAuthService(&MockUserRepository{}, &MockLoginGuard{}, &MockTokenRevoker{})
	_, err := svc.Login(context.Background(), "   ", "password", "203.0.113.9", "go-test")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

// ============================================================================
// Register
// ============================================================================

func TestAuthService_Register_Success(t *testing.T) {
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "user1"
			user.CreatedAt = time.Now()
			user.UpdatedAt = time.Now()
			return user, nil
		},
	}

	svc := newAuthService(repo, &MockLoginGuard{}, &MockTokenRevoker{})
	resp, err := svc.Register(context.Background(), "New@Example.com", "SecurePassword123!", "New User")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "new@example.com", resp.User.Email)
	assert.Equal(t, "user", resp.User.Role)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return testUserWithPassword(t, "SecurePassword123!"), nil
		},
	}

	svc := newAuthService(repo, &MockLoginGuard{}, &MockTokenRevoker{})
	_, err := svc.Register(context.Background(), "user@example.com", "SecurePassword123!", "Dup")

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	svc := newAuthService(&MockUserRepository{}, &MockLoginGuard{}, &MockTokenRevoker{})
	_, err := svc.Register(context.Background(), "user@example.com", "password", "Weak")
	assert.Error(t, err)
}

// ============================================================================
// RefreshToken
// ============================================================================

func TestAuthService_RefreshToken_RotatesAndRevokesOld(t *testing.T) {
	user := testUserWithPassword(t, "SecurePassword123!")
	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	refreshToken, err := tm.GenerateRefreshToken(user.ID, user.Email, user.Role)
	require.NoError(t, err)

	revokedJTI := ""
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	revoker := &MockTokenRevoker{
		RevokeTokenFunc: func(ctx context.Context, jti string, expiresAt time.Time) error {
			revokedJTI = jti
			return nil
		},
	}

	svc := newAuthService(repo, &MockLoginGuard{}, revoker)
	resp, err := svc.RefreshToken(context.Background(), refreshToken)

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEqual(t, refreshToken, resp.RefreshToken)
	assert.NotEmpty(t, revokedJTI, "used refresh token must be revoked")
}

func TestAuthService_RefreshToken_RevokedTokenRejected(t *testing.T) {
	user := testUserWithPassword(t, "SecurePassword123!")
	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	refreshToken, err := tm.GenerateRefreshToken(user.ID, user.Email, user.Role)
	require.NoError(t, err)

	revoker := &MockTokenRevoker{
		IsTokenRevokedFunc: func(ctx context.Context, jti string) (bool, error) {
			return true, nil
		},
	}

	svc := newAuthService(&MockUserRepository{}, &MockLoginGuard{}, revoker)
	_, err = svc.RefreshToken(context.Background(), refreshToken)

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_RefreshToken_AccessTokenRejected(t *testing.T) {
	user := testUserWithPassword(t, "SecurePassword123!")
	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	accessToken, err := tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	require.NoError(t, err)

	svc := newAuthService(&MockUserRepository{}, &MockLoginGuard{}, &MockTokenRevoker{})
	_, err = svc.RefreshToken(context.Background(), accessToken)

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_RefreshToken_GarbageRejected(t *testing.T) {
	svc := newAuthService(&MockUserRepository{}, &MockLoginGuard{}, &MockTokenRevoker{})
	_, err := svc.RefreshToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

// ============================================================================
// Logout
// ============================================================================

func TestAuthService_Logout_RevokesAccessToken(t *testing.T) {
	user := testUserWithPassword(t, "SecurePassword123!")
	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	accessToken, err := tm.GenerateAccessToken(user.ID, user.Email, user.Role)
	require.NoError(t, err)

	revokedJTI := ""
	revoker := &MockTokenRevoker{
		RevokeTokenFunc: func(ctx context.Context, jti string, expiresAt time.Time) error {
			revokedJTI = jti
			return nil
		},
	}

	svc := newAuthService(&MockUserRepository{}, &MockLoginGuard{}, revoker)
	err = svc.Logout(context.Background(), accessToken)

	require.NoError(t, err)
	assert.NotEmpty(t, revokedJTI)
}

func TestAuthService_Logout_InvalidToken(t *testing.T) {
	svc := newAuthService(&MockUserRepository{}, &MockLoginGuard{}, &MockTokenRevoker{})
	err := svc.Logout(context.Background(), "garbage")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
