package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/models"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/partition"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/export"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/storage"
)

// reportArchive is the slice of storage.ReportArchive the exports need.
type reportArchive interface {
	Save(runID, filename string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Exists(relPath string) bool
}

// ExportService renders the reports of a completed run: the per-student
// assignment CSV and the per-section course analysis as CSV or PDF. The
// tables mirror what schedulers hand to building administrators. Rendered
// files are archived on disk and served through signed download links.
type ExportService struct {
	runs      *RunService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	archive   reportArchive
	signer    *storage.DownloadSigner
	apiPrefix string
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. The archive and signer may
// be nil, which disables download links but keeps direct rendering working.
func NewExportService(runs *RunService, csv *export.CSVExporter, pdf *export.PDFExporter, archive reportArchive, signer *storage.DownloadSigner, apiPrefix string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiPrefix == "" {
		apiPrefix = "/api/v1"
	}
	return &ExportService{
		runs:      runs,
		csv:       csv,
		pdf:       pdf,
		archive:   archive,
		signer:    signer,
		apiPrefix: strings.TrimRight(apiPrefix, "/"),
		logger:    logger,
	}
}

// AssignmentsCSV renders the student assignment report.
func (s *ExportService) AssignmentsCSV(ctx context.Context, runID string) ([]byte, error) {
	entries, err := s.runs.Assignments(ctx, runID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"id", "last name", "first name", "middle name", "letter"},
	}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":          entry.StudentID,
			"last name":   entry.LastName,
			"first name":  entry.FirstName,
			"middle name": entry.MiddleName,
			"letter":      entry.Letter,
		})
	}
	return s.csv.Render(dataset)
}

// AnalysisCSV renders the course analysis report.
func (s *ExportService) AnalysisCSV(ctx context.Context, runID string) ([]byte, error) {
	dataset, err := s.analysisDataset(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(*dataset)
}

// AnalysisPDF renders the course analysis report as a PDF document.
func (s *ExportService) AnalysisPDF(ctx context.Context, runID string) ([]byte, error) {
	dataset, err := s.analysisDataset(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.pdf.Render(*dataset, fmt.Sprintf("Course Analysis %s", runID))
}

// analysisDataset rebuilds the per-section table from the stored reports.
// Column layout follows the capacity analysis a scheduler reads: counts,
// ratios, deviation from an even split and a yes/no compliance verdict.
func (s *ExportService) analysisDataset(ctx context.Context, runID string) (*export.Dataset, error) {
	run, err := s.runs.findRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrRunNotFinished, "run has no reports yet")
	}

	var cfg partition.Config
	if err := json.Unmarshal(run.Config, &cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode run configuration")
	}
	var reports []partition.SectionReport
	if err := json.Unmarshal(run.Reports, &reports); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode section reports")
	}

	letters := cfg.Letters()
	headers := []string{"room", "period", "section list", "total students"}
	for _, letter := range letters {
		headers = append(headers, letter+" count")
	}
	for _, letter := range letters {
		headers = append(headers, letter+" ratio")
	}
	headers = append(headers, "max deviation", "in compliance?")

	dataset := &export.Dataset{Headers: headers}
	for _, report := range reports {
		row := map[string]string{
			"room":           report.Key.Room,
			"period":         report.Key.Period,
			"section list":   strings.Join(report.Courses, "; "),
			"total students": strconv.Itoa(report.Total),
			"max deviation":  formatRatio(report.MaxDeviation),
		}
		for i, letter := range letters {
			count := 0
			ratio := 0.0
			if i < len(report.Counts) {
				count = report.Counts[i]
				ratio = report.Ratios[i]
			}
			row[letter+" count"] = strconv.Itoa(count)
			row[letter+" ratio"] = formatRatio(ratio)
		}
		if report.Compliant {
			row["in compliance?"] = "Yes"
		} else {
			row["in compliance?"] = "No"
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset, nil
}

// Archived report filenames, one set per run.
const (
	reportAssignmentsCSV = "student_assignments.csv"
	reportAnalysisCSV    = "course_analysis.csv"
	reportAnalysisPDF    = "course_analysis.pdf"
)

// ReportLinks renders and archives every report of a completed run, then
// returns signed download links. Files already on disk are not re-rendered.
func (s *ExportService) ReportLinks(ctx context.Context, runID string) ([]dto.ReportLink, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "report downloads are not configured")
	}

	renderers := []struct {
		filename string
		render   func(context.Context, string) ([]byte, error)
	}{
		{reportAssignmentsCSV, s.AssignmentsCSV},
		{reportAnalysisCSV, s.AnalysisCSV},
		{reportAnalysisPDF, s.AnalysisPDF},
	}

	links := make([]dto.ReportLink, 0, len(renderers))
	for _, r := range renderers {
		relPath, err := s.ensureArchived(ctx, runID, r.filename, r.render)
		if err != nil {
			return nil, err
		}
		token, expiresAt, err := s.signer.Sign(runID, relPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
		}
		links = append(links, dto.ReportLink{
			File:      r.filename,
			URL:       fmt.Sprintf("%s/downloads/%s", s.apiPrefix, token),
			ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		})
	}
	return links, nil
}

// OpenSigned validates a download token and opens the archived file it
// references. The caller owns the returned handle.
func (s *ExportService) OpenSigned(token string) (*os.File, string, error) {
	if s.archive == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrInternal, "report downloads are not configured")
	}
	runID, relPath, _, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download link")
	}
	if !s.archive.Exists(relPath) {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file no longer available")
	}
	file, err := s.archive.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	return file, fmt.Sprintf("%s_%s", runID, strings.TrimPrefix(relPath, runID+"/")), nil
}

func (s *ExportService) ensureArchived(ctx context.Context, runID, filename string, render func(context.Context, string) ([]byte, error)) (string, error) {
	relPath := runID + "/" + filename
	if s.archive.Exists(relPath) {
		return relPath, nil
	}
	payload, err := render(ctx, runID)
	if err != nil {
		return "", err
	}
	stored, err := s.archive.Save(runID, filename, payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive report")
	}
	s.logger.Sugar().Infow("report archived", "run_id", runID, "file", filename)
	return stored, nil
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
