package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/service"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/response"
)

// RunHandler exposes optimization run endpoints.
type RunHandler struct {
	runs    *service.RunService
	exports *service.ExportService
}

// NewRunHandler constructs handler.
func NewRunHandler(runs *service.RunService, exports *service.ExportService) *RunHandler {
	return &RunHandler{runs: runs, exports: exports}
}

// Create godoc
// @Summary Launch an optimization run
// @Tags Runs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateRunRequest true "Run configuration"
// @Success 202 {object} response.Envelope
// @Router /runs [post]
func (h *RunHandler) Create(c *gin.Context) {
	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run payload"))
		return
	}
	resp, err := h.runs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, resp)
}

// Get godoc
// @Summary Run status and result summary
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id} [get]
func (h *RunHandler) Get(c *gin.Context) {
	resp, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// List godoc
// @Summary List optimization runs
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param rosterId query string false "Roster ID"
// @Param status query string false "Run status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /runs [get]
func (h *RunHandler) List(c *gin.Context) {
	var query dto.RunListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run query"))
		return
	}
	runs, pagination, err := h.runs.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Progress godoc
// @Summary Live progress of a run
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id}/progress [get]
func (h *RunHandler) Progress(c *gin.Context) {
	resp, err := h.runs.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Assignments godoc
// @Summary Per-student cohort letters of a completed run
// @Tags Runs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /runs/{id}/assignments [get]
func (h *RunHandler) Assignments(c *gin.Context) {
	entries, err := h.runs.Assignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// AssignmentsReport godoc
// @Summary Student assignment report as CSV
// @Tags Reports
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {file} file
// @Router /runs/{id}/reports/assignments.csv [get]
func (h *RunHandler) AssignmentsReport(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.exports.AssignmentsCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, "text/csv", fmt.Sprintf("student_assignments_%s.csv", id), payload)
}

// AnalysisReportCSV godoc
// @Summary Course analysis report as CSV
// @Tags Reports
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {file} file
// @Router /runs/{id}/reports/analysis.csv [get]
func (h *RunHandler) AnalysisReportCSV(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.exports.AnalysisCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, "text/csv", fmt.Sprintf("course_analysis_%s.csv", id), payload)
}

// AnalysisReportPDF godoc
// @Summary Course analysis report as PDF
// @Tags Reports
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {file} file
// @Router /runs/{id}/reports/analysis.pdf [get]
func (h *RunHandler) AnalysisReportPDF(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.exports.AnalysisPDF(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, "application/pdf", fmt.Sprintf("course_analysis_%s.pdf", id), payload)
}

// ReportLinks godoc
// @Summary Signed download links for all run reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /runs/{id}/reports [get]
func (h *RunHandler) ReportLinks(c *gin.Context) {
	links, err := h.exports.ReportLinks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, links, nil)
}

// Download godoc
// @Summary Download an archived report via signed token
// @Tags Reports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /downloads/{token} [get]
func (h *RunHandler) Download(c *gin.Context) {
	file, filename, err := h.exports.OpenSigned(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/octet-stream")
	c.File(file.Name())
}
