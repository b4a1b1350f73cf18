package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arquivoshare/portal-api/internal/models"
)

func permissionRows(now time.Time) *sqlmock.Rows {
	userID := "u1"
	groupID := "g1"
	return sqlmock.NewRows([]string{"id", "file_id", "user_id", "group_id", "category_id", "created_at"}).
		AddRow("p1", "f1", &userID, nil, nil, now).
		AddRow("p2", "f1", nil, &groupID, nil, now)
}

func TestPermissionRepositoryListByFile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, file_id, user_id, group_id, category_id, created_at FROM file_permissions WHERE file_id = $1 ORDER BY created_at ASC")).
		WithArgs("f1").
		WillReturnRows(permissionRows(now))

	grants, err := repo.ListByFile(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, grants, 2)

	scope, id, err := grants[0].Scope()
	require.NoError(t, err)
	assert.Equal(t, models.GrantScopeUser, scope)
	assert.Equal(t, "u1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryListByFilesGroups(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, file_id, user_id, group_id, category_id, created_at FROM file_permissions WHERE file_id = ANY($1)")).
		WillReturnRows(permissionRows(now))

	grouped, err := repo.ListByFiles(context.Background(), []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Len(t, grouped["f1"], 2)
	assert.Empty(t, grouped["f2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryListByFilesEmptyInput(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	grouped, err := repo.ListByFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, grouped)
}

func TestPermissionRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectExec("INSERT INTO file_permissions").WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "u1"
	grant := &models.Permission{FileID: "f1", UserID: &userID}
	err := repo.Create(context.Background(), grant)
	require.NoError(t, err)
	assert.NotEmpty(t, grant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM file_permissions WHERE id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "p1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
