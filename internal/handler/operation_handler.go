package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner/internal/dto"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
	"github.com/noah-isme/course-planner/pkg/response"
)

// MaxPayloadBytes bounds an operation request body.
const MaxPayloadBytes = 32 << 20

// OperationExecutor runs one named operation.
type OperationExecutor interface {
	Execute(ctx context.Context, op string, payload json.RawMessage) (interface{}, error)
}

// OperationHandler exposes the operation entry point over HTTP.
type OperationHandler struct {
	engine OperationExecutor
}

// NewOperationHandler constructs the handler.
func NewOperationHandler(engine OperationExecutor) *OperationHandler {
	return &OperationHandler{engine: engine}
}

// Execute godoc
// @Summary Run an operation
// @Description Runs one planner operation. The body is the operation payload; operations without input accept an empty body.
// @Tags Operations
// @Accept json
// @Produce json
// @Param operation path string true "Operation tag, e.g. GENERATE_SCHEDULES"
// @Param payload body object false "Operation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /operations/{operation} [post]
// @Security BearerAuth
func (h *OperationHandler) Execute(c *gin.Context) {
	op := strings.ToUpper(strings.TrimSpace(c.Param("operation")))

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "payload too large"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read payload"))
		return
	}

	result, err := h.engine.Execute(c.Request.Context(), op, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// List godoc
// @Summary List operations
// @Tags Operations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /operations [get]
// @Security BearerAuth
func (h *OperationHandler) List(c *gin.Context) {
	response.OK(c, gin.H{"operations": dto.Operations})
}
