package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(nil, nil, AuthConfig{
		Secret:            "test-secret",
		Expiration:        time.Hour,
		AdminUser:         "scheduler-admin",
		AdminPasswordHash: string(hash),
	})
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	svc := newTestAuthService(t)

	resp, err := svc.Login(models.LoginRequest{Username: "scheduler-admin", Password: "correct horse"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "scheduler-admin", claims.Username)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t)

	_, err := svc.Login(models.LoginRequest{Username: "scheduler-admin", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(models.LoginRequest{Username: "other", Password: "correct horse"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(models.LoginRequest{Username: "", Password: ""})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	svc := newTestAuthService(t)
	resp, err := svc.Login(models.LoginRequest{Username: "scheduler-admin", Password: "correct horse"})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, AuthConfig{
		Secret:     "different-secret",
		Expiration: time.Hour,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
