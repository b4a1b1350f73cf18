package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/models"
	"github.com/arquivoshare/portal-api/internal/service"
)

type fakeProfileRepo struct{}

func (fakeProfileRepo) FindByUserID(context.Context, string) (*models.UserProfile, error) {
	return nil, sql.ErrNoRows
}

func testAuthService() *service.AuthService {
	return service.NewAuthService(fakeProfileRepo{}, zap.NewNop(), service.AuthConfig{TokenSecret: "secret"})
}

func signTestToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTMissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files", nil)

	JWT(testAuthService())(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestJWTMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files", nil)
	c.Request.Header.Set("Authorization", "Token abc")

	JWT(testAuthService())(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTValidTokenSetsClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files", nil)
	signed := signTestToken(t, "secret", &models.JWTClaims{UserID: "u1", Role: models.RoleOperator})
	c.Request.Header.Set("Authorization", "Bearer "+signed)

	JWT(testAuthService())(c)

	assert.False(t, c.IsAborted())
	value, ok := c.Get(ContextUserKey)
	require.True(t, ok)
	claims := value.(*models.JWTClaims)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleOperator, claims.Role)
}

func TestOptionalJWTIgnoresBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/blob/tok", nil)
	c.Request.Header.Set("Authorization", "Bearer not-a-token")

	OptionalJWT(testAuthService())(c)

	assert.False(t, c.IsAborted())
	_, ok := c.Get(ContextUserKey)
	assert.False(t, ok)
}

func TestRBACAllowsRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users", nil)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})

	RequireRoles(models.RoleAdmin, models.RoleOperator)(c)

	assert.False(t, c.IsAborted())
}

func TestRBACRejectsRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/files", nil)
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	RequireRoles(models.RoleAdmin, models.RoleOperator)(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRBACSelfMatchesRouteParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users/u1", nil)
	c.Params = gin.Params{{Key: "id", Value: "u1"}}
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	RBAC(string(models.RoleAdmin), "SELF")(c)

	assert.False(t, c.IsAborted())
}

func TestRBACSelfRejectsOtherUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users/u2", nil)
	c.Params = gin.Params{{Key: "id", Value: "u2"}}
	c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	RBAC(string(models.RoleAdmin), "SELF")(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRBACMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/users", nil)

	RBAC(string(models.RoleAdmin))(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, c.IsAborted())
}
