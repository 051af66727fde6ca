package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldserve/dispatch-api/internal/models"
	appErrors "github.com/fieldserve/dispatch-api/pkg/errors"
)

type authUserStub struct {
	users      map[string]*models.User
	lastLogins map[string]time.Time
}

func (s *authUserStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *authUserStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *authUserStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if s.lastLogins == nil {
		s.lastLogins = map[string]time.Time{}
	}
	s.lastLogins[id] = ts
	return nil
}

func newAuthFixture(t *testing.T, active bool) (*AuthService, *authUserStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("dispatch123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &authUserStub{users: map[string]*models.User{
		"user-1": {
			ID:           "user-1",
			Email:        "dispatcher@fieldserve.io",
			FullName:     "Dana Dispatcher",
			PasswordHash: string(hash),
			Role:         models.RoleDispatcher,
			Active:       active,
		},
	}}
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", Issuer: "dispatch-api"})
	return svc, repo
}

func TestLoginSuccess(t *testing.T) {
	svc, repo := newAuthFixture(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dispatcher@fieldserve.io",
		Password: "dispatch123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, models.RoleDispatcher, resp.User.Role)
	assert.Contains(t, repo.lastLogins, "user-1")
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dispatcher@fieldserve.io",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@fieldserve.io",
		Password: "dispatch123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dispatcher@fieldserve.io",
		Password: "dispatch123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRoundtrip(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dispatcher@fieldserve.io",
		Password: "dispatch123",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleDispatcher, claims.Role)
	assert.Equal(t, "dispatch-api", claims.Issuer)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc, repo := newAuthFixture(t, true)
	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dispatcher@fieldserve.io",
		Password: "dispatch123",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{Secret: "different-secret"})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestMeUnknownUser(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Me(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
