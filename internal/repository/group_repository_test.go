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

func TestGroupRepositoryListWithCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "created_by", "created_at", "updated_at", "user_count"}).
		AddRow("g1", "Financeiro", nil, "u1", now, now, 3).
		AddRow("g2", "Diretoria", nil, "u1", now.Add(-time.Hour), now, 0)
	mock.ExpectQuery("SELECT g.id, g.name").WillReturnRows(rows)

	groups, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 3, groups[0].UserCount)
	assert.Equal(t, 0, groups[1].UserCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec("INSERT INTO groups").WillReturnResult(sqlmock.NewResult(0, 1))

	group := &models.Group{Name: "Financeiro", CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), group))
	assert.NotEmpty(t, group.ID)
	assert.False(t, group.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryDeleteRemovesMemberships(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM user_groups WHERE group_id = $1`)).
		WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM groups WHERE id = $1`)).
		WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "g1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryAddMemberIgnoresDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec("INSERT INTO user_groups").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AddMember(context.Background(), "g1", "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryGroupIDsForUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT group_id FROM user_groups WHERE user_id = $1`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow("g1").AddRow("g2"))

	ids, err := repo.GroupIDsForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
