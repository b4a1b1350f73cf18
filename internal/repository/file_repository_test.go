package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arquivoshare/portal-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func fileRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "description", "file_url", "file_type", "file_size", "status", "is_permanent", "start_date", "end_date", "uploaded_by", "created_at", "updated_at", "deleted_at"}).
		AddRow("f1", "Relatorio anual", nil, "uploads/relatorio.pdf", "application/pdf", int64(2048), string(models.FileStatusActive), true, nil, nil, "u1", now, now, nil)
}

func TestFileRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, file_url, file_type, file_size, status, is_permanent, start_date, end_date, uploaded_by, created_at, updated_at, deleted_at FROM files ORDER BY created_at DESC, id ASC")).
		WillReturnRows(fileRows(now))

	files, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "f1", files[0].ID)
	assert.True(t, files[0].IsPermanent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, file_url, file_type, file_size, status, is_permanent, start_date, end_date, uploaded_by, created_at, updated_at, deleted_at FROM files WHERE id = $1 LIMIT 1")).
		WithArgs("f1").
		WillReturnRows(fileRows(now))

	file, err := repo.FindByID(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "Relatorio anual", file.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	mock.ExpectExec("INSERT INTO files").WillReturnResult(sqlmock.NewResult(1, 1))

	file := &models.File{Title: "Novo arquivo", FileURL: "uploads/novo.pdf", Status: models.FileStatusActive, UploadedBy: "u1"}
	err := repo.Create(context.Background(), file)
	require.NoError(t, err)
	assert.NotEmpty(t, file.ID)
	assert.False(t, file.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFileRepository(db)

	deletedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE files SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("f1", deletedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SoftDelete(context.Background(), "f1", deletedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
