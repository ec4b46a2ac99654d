package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
)

func newRosterRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRosterRepositoryCreateWritesBundleInOneTransaction(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	bundle := &models.RosterBundle{
		Roster: models.Roster{Name: "fall-2026"},
		Students: []models.Student{
			{StudentID: "s1", LastName: "Smith", FirstName: "John", Position: 0},
			{StudentID: "s2", LastName: "Jones", FirstName: "Abigail", Position: 1},
		},
		Sections: []models.CourseSection{
			{Room: "255", Period: "1", Courses: types.JSONText(`["Math435-01"]`)},
		},
		Enrollments: []models.Enrollment{
			{StudentID: "s1", Room: "255", Period: "1"},
			{StudentID: "s2", Room: "255", Period: "1"},
		},
		Subgroups: []models.SubgroupPair{
			{Kind: models.SubgroupRequired, StudentA: "s1", StudentB: "s2"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rosters").
		WithArgs(sqlmock.AnyArg(), "fall-2026", 2, 1, 1, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO roster_students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO roster_students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO course_sections").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO subgroup_pairs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), bundle))
	assert.NotEmpty(t, bundle.Roster.ID)
	assert.Equal(t, bundle.Roster.ID, bundle.Students[0].RosterID)
	assert.Equal(t, 1, bundle.Roster.RequiredPairs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryCreateRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rosters").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.RosterBundle{Roster: models.Roster{Name: "x"}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryLoadBundleOrdersStudentsByPosition(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery("SELECT id, name, student_count").
		WithArgs("roster-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "student_count", "section_count", "required_pairs", "preferred_pairs", "created_at"}).
			AddRow("roster-1", "fall-2026", 2, 1, 0, 0, time.Now()))
	mock.ExpectQuery("SELECT roster_id, student_id, last_name").
		WithArgs("roster-1").
		WillReturnRows(sqlmock.NewRows([]string{"roster_id", "student_id", "last_name", "first_name", "middle_name", "position"}).
			AddRow("roster-1", "s1", "Smith", "John", "", 0).
			AddRow("roster-1", "s2", "Jones", "Abigail", "", 1))
	mock.ExpectQuery("SELECT roster_id, room, period, courses").
		WithArgs("roster-1").
		WillReturnRows(sqlmock.NewRows([]string{"roster_id", "room", "period", "courses"}).
			AddRow("roster-1", "255", "1", []byte(`["Math435-01"]`)))
	mock.ExpectQuery("SELECT roster_id, student_id, room, period").
		WithArgs("roster-1").
		WillReturnRows(sqlmock.NewRows([]string{"roster_id", "student_id", "room", "period"}).
			AddRow("roster-1", "s1", "255", "1").
			AddRow("roster-1", "s2", "255", "1"))
	mock.ExpectQuery("SELECT roster_id, kind, student_a, student_b").
		WithArgs("roster-1").
		WillReturnRows(sqlmock.NewRows([]string{"roster_id", "kind", "student_a", "student_b"}))

	bundle, err := repo.LoadBundle(context.Background(), "roster-1")
	require.NoError(t, err)
	require.Len(t, bundle.Students, 2)
	assert.Equal(t, "s1", bundle.Students[0].StudentID)
	assert.Len(t, bundle.Enrollments, 2)
	assert.Empty(t, bundle.Subgroups)
	require.NoError(t, mock.ExpectationsWereMet())
}
