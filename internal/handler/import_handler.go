package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

const uploadField = "file"

type importService interface {
	ImportSkills(ctx context.Context, filename string, content []byte) (*service.ImportResult, error)
	ImportTeachers(ctx context.Context, filename string, content []byte) (*service.ImportResult, error)
}

// ImportHandler accepts CSV uploads for skills and teachers.
type ImportHandler struct {
	service  importService
	maxBytes int64
}

// NewImportHandler constructs an import handler.
func NewImportHandler(svc *service.ImportService, maxBytes int64) *ImportHandler {
	return &ImportHandler{service: svc, maxBytes: maxBytes}
}

// Skills godoc
// @Summary Import skills from CSV
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV with a name column"
// @Success 200 {object} response.Envelope
// @Router /skills/import [post]
func (h *ImportHandler) Skills(c *gin.Context) {
	h.handle(c, h.service.ImportSkills)
}

// Teachers godoc
// @Summary Import teachers from CSV
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV with name, free_slots and skills columns"
// @Success 200 {object} response.Envelope
// @Router /teachers/import [post]
func (h *ImportHandler) Teachers(c *gin.Context) {
	h.handle(c, h.service.ImportTeachers)
}

func (h *ImportHandler) handle(c *gin.Context, run func(context.Context, string, []byte) (*service.ImportResult, error)) {
	filename, content, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := run(c.Request.Context(), filename, content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *ImportHandler) readUpload(c *gin.Context) (string, []byte, error) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1024*64)
	}
	header, err := c.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// The service reports the missing file.
			return "", nil, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, h.tooLarge()
		}
		return "", nil, appErrors.Wrap(err, appErrors.ErrInvalidUpload.Code, http.StatusBadRequest, "expected a multipart upload in field \"file\"")
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return "", nil, h.tooLarge()
	}
	file, err := header.Open()
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInvalidUpload.Code, http.StatusBadRequest, "uploaded file could not be read")
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInvalidUpload.Code, http.StatusBadRequest, "uploaded file could not be read")
	}
	return header.Filename, content, nil
}

func (h *ImportHandler) tooLarge() error {
	return appErrors.Clone(appErrors.ErrInvalidUpload, fmt.Sprintf("file exceeds %d bytes", h.maxBytes))
}
