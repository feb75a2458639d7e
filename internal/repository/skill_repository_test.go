package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestSkillRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSkillRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM skills ORDER BY name ASC, id ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Art").AddRow(2, "Math"))

	skills, err := repo.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Skill{{ID: 1, Name: "Art"}, {ID: 2, Name: "Math"}}, skills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkillRepositoryCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSkillRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO skills (name) VALUES ($1) RETURNING id")).
		WithArgs("Physics").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	skill := &models.Skill{Name: "Physics"}
	require.NoError(t, repo.Create(context.Background(), nil, skill))
	assert.Equal(t, int64(9), skill.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkillRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSkillRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM skills WHERE LOWER(TRIM(name)) = LOWER(TRIM($1)) AND id <> $2 LIMIT 1")).
		WithArgs(" math ", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM skills WHERE LOWER(TRIM(name)) = LOWER(TRIM($1)) LIMIT 1")).
		WithArgs("art").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByName(context.Background(), " math ", 3)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByName(context.Background(), "art", 0)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSkillRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSkillRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM skills WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := repo.FindByID(context.Background(), 4)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSkillRepositoryFindByIDsSkipsEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSkillRepository(db)

	skills, err := repo.FindByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, skills)
}
