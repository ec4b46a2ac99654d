package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
)

const importFixtureCSV = `LAST,FIRST,MIDDLE,STUDENT_ID,COURSE_NUMBER,COURSE_NAME,COURSE_ID,ROOM_NUMBER,PERIOD
Smith,John,William,s1,Math435-01,ALGEBRA 2/TRIG,299381878,255,1
Jones,Abigail,May,s2,Math435-01,ALGEBRA 2/TRIG,299381878,255,1
Baker,Carl,,s3,Eng402-01,ADV BRITISH LIT,345342243,211,2
`

func newRosterServiceFixture(t *testing.T) (*RosterService, *fakeRosterRepo) {
	t.Helper()
	repo := newFakeRosterRepo()
	return NewRosterService(repo, nil, zap.NewNop()), repo
}

func TestRosterServiceImport(t *testing.T) {
	svc, repo := newRosterServiceFixture(t)

	resp, err := svc.Import(context.Background(), dto.ImportRosterRequest{
		Name:          "fall-2026",
		EnrollmentCSV: importFixtureCSV,
		RequiredCSV:   "A,B\ns1,s2\n",
		PreferredCSV:  "A,B\ns2,s3\n",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.StudentCount)
	assert.Equal(t, 2, resp.SectionCount)
	assert.Equal(t, 1, resp.RequiredPairs)
	assert.Equal(t, 1, resp.PreferredPairs)

	bundle, err := repo.LoadBundle(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Len(t, bundle.Enrollments, 3)
	assert.Len(t, bundle.Subgroups, 2)
}

func TestRosterServiceImportRejectsBadEnrollmentData(t *testing.T) {
	svc, _ := newRosterServiceFixture(t)

	_, err := svc.Import(context.Background(), dto.ImportRosterRequest{
		Name:          "broken",
		EnrollmentCSV: "LAST,FIRST\nSmith,John\n",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRosterData.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceImportRejectsUnknownSubgroupStudent(t *testing.T) {
	svc, _ := newRosterServiceFixture(t)

	_, err := svc.Import(context.Background(), dto.ImportRosterRequest{
		Name:          "bad-pairs",
		EnrollmentCSV: importFixtureCSV,
		RequiredCSV:   "A,B\ns1,ghost\n",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRosterData.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceImportRequiresName(t *testing.T) {
	svc, _ := newRosterServiceFixture(t)

	_, err := svc.Import(context.Background(), dto.ImportRosterRequest{EnrollmentCSV: importFixtureCSV})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceGetUnknownRoster(t *testing.T) {
	svc, _ := newRosterServiceFixture(t)

	_, err := svc.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
