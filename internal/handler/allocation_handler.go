package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type allocationService interface {
	Run(ctx context.Context, trigger string) (*models.AllocationRun, error)
	Enqueue(ctx context.Context, trigger string) (*models.AllocationRun, error)
	Get(ctx context.Context, id string) (*models.AllocationRun, error)
	List(ctx context.Context, page, pageSize int) ([]models.AllocationRun, *models.Pagination, error)
}

// AllocationHandler triggers and inspects allocation runs.
type AllocationHandler struct {
	service allocationService
}

// NewAllocationHandler constructs the handler.
func NewAllocationHandler(svc *service.AllocationService) *AllocationHandler {
	return &AllocationHandler{service: svc}
}

// Run godoc
// @Summary Reallocate every grid session
// @Description Clears all assignments and greedily reassigns them in one transaction. With async=true the run is queued and 202 is returned.
// @Tags Allocations
// @Produce json
// @Param async query bool false "Queue the run"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Run(c *gin.Context) {
	trigger := "api"
	if claims := internalmiddleware.Claims(c); claims != nil && claims.Subject != "" {
		trigger = "api:" + claims.Subject
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		run, err := h.service.Enqueue(c.Request.Context(), trigger)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, run)
		return
	}

	run, err := h.service.Run(c.Request.Context(), trigger)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// List godoc
// @Summary List allocation runs, newest first
// @Tags Allocations
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	runs, pagination, err := h.service.List(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Get godoc
// @Summary Get allocation run
// @Tags Allocations
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id} [get]
func (h *AllocationHandler) Get(c *gin.Context) {
	run, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}
