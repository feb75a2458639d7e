package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestAllocationRunRepositoryCreateAndUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRunRepository(db)

	now := time.Now().UTC()
	run := &models.AllocationRun{ID: "run-1", Status: models.AllocationRunRunning, Trigger: "api", CreatedAt: now}

	mock.ExpectExec("INSERT INTO allocation_runs").
		WithArgs("run-1", models.AllocationRunRunning, "api", 0, 0, nil, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE allocation_runs").
		WithArgs(models.AllocationRunCompleted, 4, 1, nil, sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), nil, run))
	finished := now.Add(time.Second)
	run.Status = models.AllocationRunCompleted
	run.Assigned, run.Unassigned, run.FinishedAt = 4, 1, &finished
	require.NoError(t, repo.Update(context.Background(), nil, run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocationRunRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRunRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM allocation_runs ORDER BY created_at DESC LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "trigger", "assigned", "unassigned", "error", "created_at", "finished_at"}).
			AddRow("run-1", "COMPLETED", "cli", 3, 0, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM allocation_runs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	runs, total, err := repo.List(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.AllocationRunCompleted, runs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
