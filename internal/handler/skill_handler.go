package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type skillService interface {
	List(ctx context.Context) ([]models.Skill, error)
	Get(ctx context.Context, id int64) (*models.Skill, error)
	Create(ctx context.Context, req service.SkillRequest) (*models.Skill, error)
	Update(ctx context.Context, id int64, req service.SkillRequest) (*models.Skill, error)
	Delete(ctx context.Context, id int64) error
}

// SkillHandler handles skill endpoints.
type SkillHandler struct {
	service skillService
}

// NewSkillHandler constructs a skill handler.
func NewSkillHandler(svc *service.SkillService) *SkillHandler {
	return &SkillHandler{service: svc}
}

// List godoc
// @Summary List skills
// @Tags Skills
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /skills [get]
func (h *SkillHandler) List(c *gin.Context) {
	skills, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, skills, nil)
}

// Get godoc
// @Summary Get skill by id
// @Tags Skills
// @Produce json
// @Param id path int true "Skill ID"
// @Success 200 {object} response.Envelope
// @Router /skills/{id} [get]
func (h *SkillHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	skill, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, skill, nil)
}

// Create godoc
// @Summary Create skill
// @Tags Skills
// @Accept json
// @Produce json
// @Param payload body service.SkillRequest true "Skill payload"
// @Success 201 {object} response.Envelope
// @Router /skills [post]
func (h *SkillHandler) Create(c *gin.Context) {
	var req service.SkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	skill, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, skill)
}

// Update godoc
// @Summary Rename skill
// @Tags Skills
// @Accept json
// @Produce json
// @Param id path int true "Skill ID"
// @Param payload body service.SkillRequest true "Skill payload"
// @Success 200 {object} response.Envelope
// @Router /skills/{id} [put]
func (h *SkillHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.SkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	skill, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, skill, nil)
}

// Delete godoc
// @Summary Delete skill
// @Description Rejected with 409 while any session requires the skill.
// @Tags Skills
// @Param id path int true "Skill ID"
// @Success 204
// @Router /skills/{id} [delete]
func (h *SkillHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
