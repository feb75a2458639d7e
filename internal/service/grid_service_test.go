package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	monday = "Monday"
	first  = "08:00-09:00"
	grade1 = "Grade 1"
	grade2 = "Grade 2"
)

type gridFixture struct {
	svc      *GridService
	sessions *sessionRepoFake
	cache    *cacheRepoFake
}

func newGridFixture(t *testing.T, tx txProvider, sessions ...models.Session) gridFixture {
	t.Helper()
	skills := newSkillRepoFake(models.Skill{ID: 1, Name: "Math"}, models.Skill{ID: 2, Name: "Art"})
	teachers := newTeacherRepoFake(skills,
		models.Teacher{ID: 7, Name: "Ann", FreeSlots: "Mon 08:00-09:00, Mon 09:00-10:00", Skills: []models.Skill{{ID: 1, Name: "Math"}}},
		models.Teacher{ID: 8, Name: "Bob", FreeSlots: "Tue 08:00-09:00", Skills: []models.Skill{{ID: 1, Name: "Math"}}},
		models.Teacher{ID: 9, Name: "Cy", FreeSlots: "monday 8:00", Skills: []models.Skill{{ID: 2, Name: "Art"}}},
	)
	sessionRepo := newSessionRepoFake(sessions...)
	cacheRepo := newCacheRepoFake()
	cache := NewCacheService(cacheRepo, nil, 0, nil, true)
	return gridFixture{
		svc:      NewGridService(sessionRepo, teachers, skills, tx, cache, nil, nil),
		sessions: sessionRepo,
		cache:    cacheRepo,
	}
}

func saveRequest(day, slot, year string, skillID int64, teacherID *int64) SaveCellRequest {
	return SaveCellRequest{CellRequest: CellRequest{Day: day, Slot: slot, YearGroup: year}, RequiredSkillID: skillID, TeacherID: teacherID}
}

func TestGridServiceSaveCellCreatesSession(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := fx.svc.SaveCell(context.Background(), saveRequest(" Monday ", first, grade1, 1, int64Ptr(7)))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deduped)
	assert.Equal(t, monday, result.Session.Day)
	require.NotNil(t, result.Session.TeacherID)
	assert.Equal(t, int64(7), *result.Session.TeacherID)

	require.Len(t, fx.sessions.sessions, 1)
	assert.Equal(t, int64(7), *fx.sessions.sessions[0].TeacherID)
	assert.Equal(t, 1, fx.sessions.locks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceSaveCellCollapsesDuplicates(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx,
		models.Session{ID: 3, RequiredSkillID: 2, Day: monday, Slot: first, YearGroup: grade1},
		models.Session{ID: 1, RequiredSkillID: 2, Day: monday, Slot: first, YearGroup: grade1},
		models.Session{ID: 2, RequiredSkillID: 2, Day: monday, Slot: first, YearGroup: grade1, TeacherID: int64Ptr(9)},
	)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := fx.svc.SaveCell(context.Background(), saveRequest(monday, first, grade1, 1, int64Ptr(7)))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deduped)
	assert.Equal(t, int64(1), result.Session.ID)
	require.Len(t, fx.sessions.sessions, 1)
	assert.Equal(t, int64(1), fx.sessions.sessions[0].RequiredSkillID)
	assert.Equal(t, int64(7), *fx.sessions.sessions[0].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceSaveCellWithoutTeacherClearsAssignment(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx, models.Session{ID: 1, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade1, TeacherID: int64Ptr(7)})
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := fx.svc.SaveCell(context.Background(), saveRequest(monday, first, grade1, 1, int64Ptr(0)))
	require.NoError(t, err)
	assert.Nil(t, result.Session.TeacherID)
	assert.Nil(t, fx.sessions.sessions[0].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceSaveCellRejectsBeforeTransaction(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx)

	cases := []struct {
		name string
		req  SaveCellRequest
		code string
	}{
		{name: "unknown day", req: saveRequest("Saturday", first, grade1, 1, nil), code: appErrors.ErrInvalidGridCell.Code},
		{name: "lunch slot", req: saveRequest(monday, "12:00-13:00", grade1, 1, nil), code: appErrors.ErrInvalidGridCell.Code},
		{name: "legacy year", req: saveRequest(monday, first, "First", 1, nil), code: appErrors.ErrInvalidGridCell.Code},
		{name: "no skill", req: saveRequest(monday, first, grade1, 0, nil), code: appErrors.ErrMissingSkill.Code},
		{name: "unknown skill", req: saveRequest(monday, first, grade1, 42, nil), code: appErrors.ErrMissingSkill.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.SaveCell(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, fx.sessions.sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceSaveCellRejectsIneligibleTeacher(t *testing.T) {
	cases := []struct {
		name   string
		req    SaveCellRequest
		code   string
		seeded []models.Session
	}{
		{name: "teacher missing", req: saveRequest(monday, first, grade1, 1, int64Ptr(99)), code: appErrors.ErrNotFound.Code},
		{name: "unavailable", req: saveRequest(monday, first, grade1, 1, int64Ptr(8)), code: appErrors.ErrTeacherUnavailable.Code},
		{name: "missing skill", req: saveRequest(monday, first, grade1, 1, int64Ptr(9)), code: appErrors.ErrTeacherMissingSkill.Code},
		{
			name:   "busy elsewhere",
			req:    saveRequest(monday, first, grade1, 1, int64Ptr(7)),
			code:   appErrors.ErrTeacherBusy.Code,
			seeded: []models.Session{{ID: 5, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade2, TeacherID: int64Ptr(7)}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, mock := newTxProviderMock(t)
			fx := newGridFixture(t, tx, tc.seeded...)
			mock.ExpectBegin()
			mock.ExpectRollback()

			_, err := fx.svc.SaveCell(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGridServiceClearCell(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx,
		models.Session{ID: 1, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade1},
		models.Session{ID: 2, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade1},
		models.Session{ID: 3, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade2},
	)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	removed, err := fx.svc.ClearCell(context.Background(), CellRequest{Day: monday, Slot: first, YearGroup: grade1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	require.Len(t, fx.sessions.sessions, 1)

	_, err = fx.svc.ClearCell(context.Background(), CellRequest{Day: monday, Slot: first, YearGroup: grade1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceRepair(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx,
		models.Session{ID: 1, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade1},
		models.Session{ID: 2, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade1, TeacherID: int64Ptr(7)},
		models.Session{ID: 3, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade1},
		models.Session{ID: 4, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade2, TeacherID: int64Ptr(7)},
		models.Session{ID: 5, RequiredSkillID: 1, Day: "", Slot: first, YearGroup: ""},
	)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := fx.svc.Repair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, 1, result.ConflictsCleared)

	byID := map[int64]models.Session{}
	for _, s := range fx.sessions.sessions {
		byID[s.ID] = s
	}
	require.Len(t, byID, 3)
	require.NotNil(t, byID[1].TeacherID)
	assert.Equal(t, int64(7), *byID[1].TeacherID)
	assert.Nil(t, byID[4].TeacherID)
	assert.Contains(t, byID, int64(5))

	again, err := fx.svc.Repair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RepairResult{}, *again)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceMigrateLegacyYearGroups(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx,
		models.Session{ID: 1, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: "First"},
		models.Session{ID: 2, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: "Fifth"},
		models.Session{ID: 3, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade2},
	)
	mock.ExpectBegin()
	mock.ExpectCommit()

	migrated, err := fx.svc.MigrateLegacyYearGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), migrated)
	assert.Equal(t, grade1, fx.sessions.sessions[0].YearGroup)
	assert.Equal(t, "Grade 5", fx.sessions.sessions[1].YearGroup)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceScheduleUsesCacheUntilInvalidated(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	fx := newGridFixture(t, tx,
		models.Session{ID: 1, RequiredSkillID: 1, Day: monday, Slot: first, YearGroup: grade1, TeacherID: int64Ptr(7)},
		models.Session{ID: 2, RequiredSkillID: 2, Day: monday, Slot: first, YearGroup: grade2},
	)

	view, hit, err := fx.svc.Schedule(context.Background(), "Funday")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, monday, view.ActiveDay)
	assert.Equal(t, 1, view.Unassigned)
	require.Len(t, view.Days, 5)

	cell := view.Days[0].Rows[0].Cells[0]
	require.NotNil(t, cell.AssignedTeacherName)
	assert.Equal(t, "Ann", *cell.AssignedTeacherName)

	cached, hit, err := fx.svc.Schedule(context.Background(), monday)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, cached.Unassigned)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = fx.svc.ClearCell(context.Background(), CellRequest{Day: monday, Slot: first, YearGroup: grade2})
	require.NoError(t, err)

	fresh, hit, err := fx.svc.Schedule(context.Background(), monday)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, fresh.Unassigned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGridServiceOrphans(t *testing.T) {
	tx, _ := newTxProviderMock(t)
	fx := newGridFixture(t, tx,
		models.Session{ID: 1, RequiredSkillID: 1, Day: "Monday", Slot: "08:00-09:00", YearGroup: "Grade 1"},
		models.Session{ID: 2, RequiredSkillID: 1, Slot: "08:00-09:00"},
		models.Session{ID: 3, RequiredSkillID: 1, Day: "Saturday", Slot: "08:00-09:00", YearGroup: "Grade 1"},
	)

	orphans, err := fx.svc.Orphans(context.Background())
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.Equal(t, int64(2), orphans[0].ID)
	assert.Equal(t, int64(3), orphans[1].ID)
}
