package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

type mockUserRepo struct {
	profiles  map[string]*models.UserProfile
	listRows  []models.UserProfile
	listCount int
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.UserProfile, int, error) {
	return m.listRows, m.listCount, nil
}

func (m *mockUserRepo) FindByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if profile, ok := m.profiles[userID]; ok {
		copy := *profile
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Update(ctx context.Context, profile *models.UserProfile) error {
	copy := *profile
	m.profiles[profile.UserID] = &copy
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, userID string, role models.UserRole) error {
	if profile, ok := m.profiles[userID]; ok {
		profile.Role = role
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listRows: []models.UserProfile{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	profiles, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{profiles: map[string]*models.UserProfile{
		"u1": {ID: "1", UserID: "u1", FullName: "Old Name", ReceiveNotifications: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	off := false
	profile, err := svc.Update(context.Background(), "u1", UpdateProfileRequest{FullName: "New Name", ReceiveNotifications: &off})
	require.NoError(t, err)
	assert.Equal(t, "New Name", profile.FullName)
	assert.False(t, profile.ReceiveNotifications)
}

func TestUserServiceUpdateRoleAudits(t *testing.T) {
	repo := &mockUserRepo{profiles: map[string]*models.UserProfile{
		"u1": {ID: "1", UserID: "u1", Role: models.RoleUser},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	profile, err := svc.UpdateRole(context.Background(), userClaims("admin1", models.RoleAdmin), "u1", UpdateRoleRequest{Role: models.RoleOperator}, models.RequestMeta{IP: "10.0.0.2"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOperator, profile.Role)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserRoleChange, repo.auditLogs[0].Action)
}

func TestUserServiceUpdateRoleRejectsUnknownRole(t *testing.T) {
	repo := &mockUserRepo{profiles: map[string]*models.UserProfile{"u1": {UserID: "u1"}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	_, err := svc.UpdateRole(context.Background(), userClaims("admin1", models.RoleAdmin), "u1", UpdateRoleRequest{Role: "superuser"}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
