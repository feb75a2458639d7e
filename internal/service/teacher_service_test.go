package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type teacherFixture struct {
	svc      *TeacherService
	teachers *teacherRepoFake
	sessions *sessionRepoFake
}

func newTeacherFixture(t *testing.T, tx txProvider, sessions ...models.Session) teacherFixture {
	t.Helper()
	skills := newSkillRepoFake(models.Skill{ID: 1, Name: "Math"}, models.Skill{ID: 2, Name: "Art"})
	teachers := newTeacherRepoFake(skills, models.Teacher{ID: 7, Name: "Ann", FreeSlots: "Mon 08:00-09:00", Skills: []models.Skill{{ID: 1, Name: "Math"}}})
	sessionRepo := newSessionRepoFake(sessions...)
	return teacherFixture{
		svc:      NewTeacherService(teachers, skills, sessionRepo, tx, nil, nil, nil),
		teachers: teachers,
		sessions: sessionRepo,
	}
}

func TestTeacherServiceCreateDefaultsSlotsAndFiltersSkills(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTeacherFixture(t, tx)
	mock.ExpectBegin()
	mock.ExpectCommit()

	teacher, err := fx.svc.Create(context.Background(), TeacherRequest{Name: " Bob ", SkillIDs: []int64{2, 2, 99}})
	require.NoError(t, err)
	assert.Equal(t, "Bob", teacher.Name)
	assert.Equal(t, timetable.DefaultFreeSlots(), teacher.FreeSlots)
	require.Len(t, teacher.Skills, 1)
	assert.Equal(t, int64(2), teacher.Skills[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherServiceCreateNormalizesSlots(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTeacherFixture(t, tx)
	mock.ExpectBegin()
	mock.ExpectCommit()

	teacher, err := fx.svc.Create(context.Background(), TeacherRequest{Name: "Cy", FreeSlots: "Mon 08:00-09:00;Tue 9:00 | "})
	require.NoError(t, err)
	assert.Equal(t, "Mon 08:00-09:00, Tue 9:00", teacher.FreeSlots)
	assert.Empty(t, teacher.Skills)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherServiceCreateRequiresName(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTeacherFixture(t, tx)

	_, err := fx.svc.Create(context.Background(), TeacherRequest{Name: " "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherServiceUpdateKeepsSlotsWhenBlank(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTeacherFixture(t, tx)
	mock.ExpectBegin()
	mock.ExpectCommit()

	teacher, err := fx.svc.Update(context.Background(), 7, TeacherRequest{Name: "Ann B", SkillIDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "Ann B", teacher.Name)
	assert.Equal(t, "Mon 08:00-09:00", teacher.FreeSlots)
	assert.Len(t, teacher.Skills, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherServiceUpdateNotFound(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTeacherFixture(t, tx)
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := fx.svc.Update(context.Background(), 99, TeacherRequest{Name: "Nobody"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherServiceDeleteReleasesSessions(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTeacherFixture(t, tx,
		models.Session{ID: 1, RequiredSkillID: 1, Day: "Monday", Slot: "08:00-09:00", YearGroup: "Grade 1", TeacherID: int64Ptr(7)},
		models.Session{ID: 2, RequiredSkillID: 1, Day: "Monday", Slot: "09:00-10:00", YearGroup: "Grade 1"},
	)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, fx.svc.Delete(context.Background(), 7))
	assert.Empty(t, fx.teachers.teachers)
	for _, s := range fx.sessions.sessions {
		assert.Nil(t, s.TeacherID)
	}
	assert.Equal(t, 1, fx.sessions.locks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherServiceDeleteNotFoundRollsBack(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newTeacherFixture(t, tx)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := fx.svc.Delete(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
