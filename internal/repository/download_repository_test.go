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

func TestDownloadRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRepository(db)

	mock.ExpectExec("INSERT INTO downloads").WillReturnResult(sqlmock.NewResult(1, 1))

	download := &models.Download{FileID: "f1", UserID: "u1"}
	err := repo.Create(context.Background(), download)
	require.NoError(t, err)
	assert.NotEmpty(t, download.ID)
	assert.False(t, download.DownloadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadRepositoryListByFile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRepository(db)

	now := time.Now()
	fileType := "application/pdf"
	fileSize := int64(1024)
	rows := sqlmock.NewRows([]string{"id", "file_id", "user_id", "downloaded_at", "file_title", "file_type", "file_size", "user_full_name"}).
		AddRow("d1", "f1", "u1", now, "Relatorio anual", &fileType, &fileSize, "Maria Souza")

	mock.ExpectQuery("SELECT (.+) FROM downloads d").
		WithArgs("f1").
		WillReturnRows(rows)

	downloads, err := repo.ListByFile(context.Background(), "f1", 50)
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, "Relatorio anual", downloads[0].FileTitle)
	assert.Equal(t, "Maria Souza", downloads[0].UserFullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDownloadRepositoryStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDownloadRepository(db)

	dayStart := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM downloads WHERE downloaded_at >= $1")).
		WithArgs(dayStart).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM downloads")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(321))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT user_id) FROM downloads WHERE downloaded_at >= $1")).
		WithArgs(monthStart).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	stats, err := repo.Stats(context.Background(), dayStart, monthStart)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TodayCount)
	assert.Equal(t, 321, stats.TotalCount)
	assert.Equal(t, 12, stats.UniqueUsersThisMonth)
	assert.NoError(t, mock.ExpectationsWereMet())
}
