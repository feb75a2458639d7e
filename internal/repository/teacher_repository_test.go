package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestTeacherRepositoryListAttachesSkills(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, free_slots FROM teachers ORDER BY name ASC, id ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "free_slots"}).
			AddRow(1, "Ann", "Mon 08:00-09:00").
			AddRow(2, "Bob", ""))
	mock.ExpectQuery("SELECT ts.teacher_id, ts.skill_id, s.name AS skill_name FROM teacher_skills ts").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"teacher_id", "skill_id", "skill_name"}).
			AddRow(1, 5, "Art").
			AddRow(1, 6, "Math"))

	teachers, err := repo.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, []models.Skill{{ID: 5, Name: "Art"}, {ID: 6, Name: "Math"}}, teachers[0].Skills)
	assert.Empty(t, teachers[1].Skills)
	assert.NotNil(t, teachers[1].Skills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryCreateAndReplaceSkills(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO teachers (name, free_slots) VALUES ($1, $2) RETURNING id")).
		WithArgs("Ann", "Mon 08:00-09:00").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_skills WHERE teacher_id = $1")).
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO teacher_skills").
		WithArgs(int64(12), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	teacher := &models.Teacher{Name: "Ann", FreeSlots: "Mon 08:00-09:00"}
	require.NoError(t, repo.Create(context.Background(), tx, teacher))
	assert.Equal(t, int64(12), teacher.ID)
	require.NoError(t, repo.ReplaceSkills(context.Background(), tx, teacher.ID, []int64{3}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teachers WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), nil, 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}
