package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChrisGrattoni/partitionoptimizer/internal/dto"
	"github.com/ChrisGrattoni/partitionoptimizer/internal/service"
	appErrors "github.com/ChrisGrattoni/partitionoptimizer/pkg/errors"
	"github.com/ChrisGrattoni/partitionoptimizer/pkg/response"
)

// RosterHandler exposes roster import and lookup endpoints.
type RosterHandler struct {
	rosters *service.RosterService
}

// NewRosterHandler constructs handler.
func NewRosterHandler(rosters *service.RosterService) *RosterHandler {
	return &RosterHandler{rosters: rosters}
}

// Import godoc
// @Summary Import an enrollment export as a new roster
// @Tags Rosters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ImportRosterRequest true "Roster CSV payloads"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /rosters [post]
func (h *RosterHandler) Import(c *gin.Context) {
	var req dto.ImportRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload"))
		return
	}
	resp, err := h.rosters.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Get godoc
// @Summary Roster summary
// @Tags Rosters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Roster ID"
// @Success 200 {object} response.Envelope
// @Router /rosters/{id} [get]
func (h *RosterHandler) Get(c *gin.Context) {
	resp, err := h.rosters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// List godoc
// @Summary List rosters
// @Tags Rosters
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /rosters [get]
func (h *RosterHandler) List(c *gin.Context) {
	var query dto.RosterListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster query"))
		return
	}
	rosters, pagination, err := h.rosters.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rosters, pagination)
}
