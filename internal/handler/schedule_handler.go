package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type gridService interface {
	Schedule(ctx context.Context, activeDay string) (*service.ScheduleView, bool, error)
	SaveCell(ctx context.Context, req service.SaveCellRequest) (*service.CellResult, error)
	ClearCell(ctx context.Context, req service.CellRequest) (int64, error)
	Repair(ctx context.Context) (*service.RepairResult, error)
}

type exportService interface {
	Export(ctx context.Context, format string) (*service.ExportFile, error)
}

// ScheduleHandler exposes the weekly grid and manual cell edits.
type ScheduleHandler struct {
	grid   gridService
	export exportService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(grid *service.GridService, export *service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{grid: grid, export: export}
}

// Schedule godoc
// @Summary Weekly grid with per-cell teacher options
// @Description Unknown active_day values fall back to Monday.
// @Tags Schedule
// @Produce json
// @Param active_day query string false "Day to focus"
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) Schedule(c *gin.Context) {
	view, hit, err := h.grid.Schedule(c.Request.Context(), c.Query("active_day"))
	if err != nil {
		response.Error(c, err)
		return
	}
	internalmiddleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, internalmiddleware.ExtractMeta(c))
}

// SaveCell godoc
// @Summary Set the skill and teacher of a grid cell
// @Description Creates the cell session on first edit. A null or zero assigned_teacher_id leaves the cell unassigned.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.SaveCellRequest true "Cell payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedule/cells [put]
func (h *ScheduleHandler) SaveCell(c *gin.Context) {
	var req service.SaveCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.grid.SaveCell(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClearCell godoc
// @Summary Delete every session of a grid cell
// @Tags Schedule
// @Produce json
// @Param day query string true "Day"
// @Param slot query string true "Slot"
// @Param year_group query string true "Year group"
// @Success 200 {object} response.Envelope
// @Router /schedule/cells [delete]
func (h *ScheduleHandler) ClearCell(c *gin.Context) {
	var req service.CellRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	removed, err := h.grid.ClearCell(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}

// Repair godoc
// @Summary Collapse duplicate cells and clear double bookings
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule/repair [post]
func (h *ScheduleHandler) Repair(c *gin.Context) {
	result, err := h.grid.Repair(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Download the timetable
// @Tags Schedule
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	file, err := h.export.Export(c.Request.Context(), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
