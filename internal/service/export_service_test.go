package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/export"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/storage"
)

func newExportServiceFixture(t *testing.T) (*ExportService, string) {
	t.Helper()
	runs, _, _, queue := newRunServiceFixture(t)

	resp, err := runs.Create(context.Background(), dto.CreateRunRequest{RosterID: "roster-small", Seed: 5})
	require.NoError(t, err)
	require.NoError(t, runs.HandleJob(context.Background(), queue.jobs[0]))

	archive, err := storage.NewReportArchive(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewDownloadSigner("export-test-secret", time.Hour)

	svc := NewExportService(runs, export.NewCSVExporter(), export.NewPDFExporter(), archive, signer, "/api/v1", zap.NewNop())
	return svc, resp.ID
}

func TestExportServiceAssignmentsCSV(t *testing.T) {
	svc, runID := newExportServiceFixture(t)

	raw, err := svc.AssignmentsCSV(context.Background(), runID)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5, "header plus four students")
	assert.Equal(t, []string{"id", "last name", "first name", "middle name", "letter"}, records[0])
	assert.Equal(t, "s1", records[1][0])
	assert.Contains(t, []string{"A", "B"}, records[1][4])
}

func TestExportServiceAnalysisCSV(t *testing.T) {
	svc, runID := newExportServiceFixture(t)

	raw, err := svc.AnalysisCSV(context.Background(), runID)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2, "header plus one section")
	assert.Equal(t, []string{
		"room", "period", "section list", "total students",
		"A count", "B count", "A ratio", "B ratio",
		"max deviation", "in compliance?",
	}, records[0])
	assert.Equal(t, "255", records[1][0])
	assert.Equal(t, "4", records[1][3])
	assert.Equal(t, "Yes", records[1][9])
}

func TestExportServiceAnalysisPDF(t *testing.T) {
	svc, runID := newExportServiceFixture(t)

	raw, err := svc.AnalysisPDF(context.Background(), runID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")), "output is a PDF document")
}

func TestExportServiceReportLinks(t *testing.T) {
	svc, runID := newExportServiceFixture(t)

	links, err := svc.ReportLinks(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, links, 3)

	files := make([]string, 0, len(links))
	for _, link := range links {
		files = append(files, link.File)
		assert.True(t, strings.HasPrefix(link.URL, "/api/v1/downloads/"), "link %q under the downloads route", link.URL)
		assert.NotEmpty(t, link.ExpiresAt)
	}
	assert.ElementsMatch(t, []string{"student_assignments.csv", "course_analysis.csv", "course_analysis.pdf"}, files)

	// the token after the route prefix must open the archived file
	token := strings.TrimPrefix(links[0].URL, "/api/v1/downloads/")
	file, filename, err := svc.OpenSigned(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, runID+"_student_assignments.csv", filename)

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "last name")
}

func TestExportServiceOpenSignedRejectsBadToken(t *testing.T) {
	svc, _ := newExportServiceFixture(t)

	_, _, err := svc.OpenSigned("not-a-real-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRequiresCompletedRun(t *testing.T) {
	runs, _, _, _ := newRunServiceFixture(t)
	svc := NewExportService(runs, export.NewCSVExporter(), export.NewPDFExporter(), nil, nil, "/api/v1", zap.NewNop())

	resp, err := runs.Create(context.Background(), dto.CreateRunRequest{RosterID: "roster-small"})
	require.NoError(t, err)

	_, err = svc.AnalysisCSV(context.Background(), resp.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRunNotFinished.Code, appErrors.FromError(err).Code)
}
