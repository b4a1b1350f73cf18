package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

type mockProfileRepo struct {
	profiles map[string]*models.UserProfile
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if profile, ok := m.profiles[userID]; ok {
		copy := *profile
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func signToken(t *testing.T, secret, issuer string, claims *models.JWTClaims) string {
	t.Helper()
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(&mockProfileRepo{}, zap.NewNop(), AuthConfig{TokenSecret: "secret", Issuer: "portal"})

	signed := signToken(t, "secret", "portal", &models.JWTClaims{UserID: "u1", Role: models.RoleOperator, Email: "op@example.com"})
	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleOperator, claims.Role)
}

func TestAuthServiceValidateTokenWrongSecret(t *testing.T) {
	svc := NewAuthService(&mockProfileRepo{}, zap.NewNop(), AuthConfig{TokenSecret: "secret"})

	signed := signToken(t, "other-secret", "", &models.JWTClaims{UserID: "u1", Role: models.RoleUser})
	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenIssuerMismatch(t *testing.T) {
	svc := NewAuthService(&mockProfileRepo{}, zap.NewNop(), AuthConfig{TokenSecret: "secret", Issuer: "portal"})

	signed := signToken(t, "secret", "someone-else", &models.JWTClaims{UserID: "u1", Role: models.RoleUser})
	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceProfile(t *testing.T) {
	repo := &mockProfileRepo{profiles: map[string]*models.UserProfile{
		"u1": {ID: "1", UserID: "u1", Email: "user@example.com", Role: models.RoleUser},
	}}
	svc := NewAuthService(repo, zap.NewNop(), AuthConfig{TokenSecret: "secret"})

	profile, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", profile.Email)

	_, err = svc.Profile(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
