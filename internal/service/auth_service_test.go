package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
)

type fakeUserRepo struct {
	users map[string]*models.User
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if user, ok := r.users[id]; ok {
		user.LastLogin = &ts
	}
	return nil
}

func newAuthServiceFixture(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &fakeUserRepo{users: map[string]*models.User{
		"u1": {
			ID:           "u1",
			Email:        "scheduler@example.edu",
			PasswordHash: string(hash),
			FullName:     "Sam Scheduler",
			Role:         models.RoleScheduler,
			Active:       true,
		},
	}}
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "partition-optimizer",
	})
	return svc, repo
}

func TestAuthServiceLoginIssuesValidToken(t *testing.T) {
	svc, repo := newAuthServiceFixture(t)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{
		Email:    "scheduler@example.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "SCHEDULER", resp.User.Role)
	assert.NotNil(t, repo.users["u1"].LastLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "SCHEDULER", claims.Role)
}

func TestAuthServiceLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthServiceFixture(t)

	_, err := svc.Login(context.Background(), dto.LoginRequest{
		Email:    "scheduler@example.edu",
		Password: "wrong-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsUnknownUser(t *testing.T) {
	svc, _ := newAuthServiceFixture(t)

	_, err := svc.Login(context.Background(), dto.LoginRequest{
		Email:    "ghost@example.edu",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := newAuthServiceFixture(t)
	repo.users["u1"].Active = false

	_, err := svc.Login(context.Background(), dto.LoginRequest{
		Email:    "scheduler@example.edu",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthServiceFixture(t)

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceMe(t *testing.T) {
	svc, _ := newAuthServiceFixture(t)

	profile, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Sam Scheduler", profile.FullName)

	_, err = svc.Me(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
