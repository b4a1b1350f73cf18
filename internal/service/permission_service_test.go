package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

type mockPermissionRepo struct {
	grants map[string]*models.Permission
	byFile map[string][]models.Permission
}

func (m *mockPermissionRepo) ListByFile(ctx context.Context, fileID string) ([]models.Permission, error) {
	return m.byFile[fileID], nil
}

func (m *mockPermissionRepo) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	if grant, ok := m.grants[id]; ok {
		copy := *grant
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPermissionRepo) Create(ctx context.Context, grant *models.Permission) error {
	if grant.ID == "" {
		grant.ID = "generated"
	}
	if m.grants == nil {
		m.grants = make(map[string]*models.Permission)
	}
	copy := *grant
	m.grants[grant.ID] = &copy
	m.byFile[grant.FileID] = append(m.byFile[grant.FileID], copy)
	return nil
}

func (m *mockPermissionRepo) Delete(ctx context.Context, id string) error {
	delete(m.grants, id)
	return nil
}

func newPermissionFixture(t *testing.T) (*PermissionService, *mockPermissionRepo, *mockFileRepo, *mockAuditWriter) {
	t.Helper()
	grants := &mockPermissionRepo{grants: make(map[string]*models.Permission), byFile: make(map[string][]models.Permission)}
	files := &mockFileRepo{files: make(map[string]*models.File)}
	files.files["f1"] = &models.File{ID: "f1", Title: "File", Status: models.FileStatusActive, CreatedAt: time.Now().UTC()}
	audit := &mockAuditWriter{}
	svc := NewPermissionService(grants, files, audit, validator.New(), zap.NewNop())
	return svc, grants, files, audit
}

func TestPermissionServiceGrantSingleScope(t *testing.T) {
	svc, grants, _, audit := newPermissionFixture(t)
	groupID := "finance"

	grant, err := svc.Grant(context.Background(), userClaims("op1", models.RoleOperator), "f1", GrantRequest{GroupID: &groupID}, models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, grant.ID)
	assert.Len(t, grants.byFile["f1"], 1)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionGrantCreate, audit.logs[0].Action)
}

func TestPermissionServiceGrantRejectsAmbiguousScope(t *testing.T) {
	svc, _, _, _ := newPermissionFixture(t)
	uid := "u1"
	gid := "g1"

	cases := []GrantRequest{
		{},
		{UserID: &uid, GroupID: &gid},
	}
	for _, req := range cases {
		_, err := svc.Grant(context.Background(), userClaims("op1", models.RoleOperator), "f1", req, models.RequestMeta{})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestPermissionServiceGrantUnknownFile(t *testing.T) {
	svc, _, _, _ := newPermissionFixture(t)
	uid := "u1"

	_, err := svc.Grant(context.Background(), userClaims("op1", models.RoleOperator), "missing", GrantRequest{UserID: &uid}, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPermissionServiceRevoke(t *testing.T) {
	svc, grants, _, audit := newPermissionFixture(t)
	uid := "u1"
	grants.grants["p1"] = &models.Permission{ID: "p1", FileID: "f1", UserID: &uid}

	require.NoError(t, svc.Revoke(context.Background(), userClaims("op1", models.RoleOperator), "f1", "p1", models.RequestMeta{}))
	_, ok := grants.grants["p1"]
	assert.False(t, ok)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionGrantRevoke, audit.logs[0].Action)
}

func TestPermissionServiceRevokeWrongFile(t *testing.T) {
	svc, grants, _, _ := newPermissionFixture(t)
	uid := "u1"
	grants.grants["p1"] = &models.Permission{ID: "p1", FileID: "other", UserID: &uid}

	err := svc.Revoke(context.Background(), userClaims("op1", models.RoleOperator), "f1", "p1", models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
