package handler

import (
	"errors"

	"github.com/gearshelf/api/internal/capture"
	"github.com/gearshelf/api/internal/orchestrator"
	"github.com/gearshelf/api/internal/service"
	"github.com/gearshelf/api/pkg/response"
	"github.com/gofiber/fiber/v2"
)

type RunHandler struct {
	service *service.RunService
	session *capture.Session
}

func NewRunHandler(svc *service.RunService, session *capture.Session) *RunHandler {
	return &RunHandler{
		service: svc,
		session: session,
	}
}

// Start handles POST /api/runs
// @Summary      Process the captured artifact
// @Description  Hands the finished recording or sample to the orchestrator and returns the run ID
// @Tags         Runs
// @Produce      json
// @Success      202 {object} model.RunStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/runs [post]
func (h *RunHandler) Start(c *fiber.Ctx) error {
	artifact, err := h.session.TakeArtifact()
	if err != nil {
		if errors.Is(err, capture.ErrNoArtifact) {
			return response.ValidationError(c, "Nothing captured yet", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	result, err := h.service.Start(c.UserContext(), artifact)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidArtifact) {
			return response.ValidationError(c, "Captured artifact is empty", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/runs/:runId
// @Summary      Run status
// @Tags         Runs
// @Produce      json
// @Param        runId path string true "Run ID"
// @Success      200 {object} model.RunStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/runs/{runId} [get]
func (h *RunHandler) Status(c *fiber.Ctx) error {
	runID := c.Params("runId")
	if runID == "" {
		return response.ValidationError(c, "Run ID is required", nil)
	}

	result, err := h.service.GetStatus(c.UserContext(), runID)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return response.NotFound(c, "Run not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/runs/:runId/result
// @Summary      Run result
// @Description  Returns the result of a succeeded run; it can be fetched once
// @Tags         Runs
// @Produce      json
// @Param        runId path string true "Run ID"
// @Success      200 {object} model.ProcessingResult
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/runs/{runId}/result [get]
func (h *RunHandler) Result(c *fiber.Ctx) error {
	runID := c.Params("runId")
	if runID == "" {
		return response.ValidationError(c, "Run ID is required", nil)
	}

	result, err := h.service.DeliverResult(c.UserContext(), runID)
	switch {
	case err == nil:
		return response.OK(c, result)
	case errors.Is(err, service.ErrRunNotFound):
		return response.NotFound(c, "Run not found")
	case errors.Is(err, service.ErrRunNotComplete):
		return response.ValidationError(c, "Run not completed yet", nil)
	case errors.Is(err, service.ErrResultDelivered):
		return response.Conflict(c, "Result already delivered")
	case errors.Is(err, service.ErrRunCancelled):
		return response.RunCancelled(c, "Processing cancelled")
	case errors.Is(err, service.ErrRunFailed):
		return response.NetworkFailure(c, "Failed to process equipment description")
	default:
		return response.ServiceError(c, err.Error())
	}
}

// Cancel handles POST /api/runs/:runId/cancel
// @Summary      Cancel a run
// @Description  Abandons the run; a late backend response is discarded
// @Tags         Runs
// @Produce      json
// @Param        runId path string true "Run ID"
// @Success      200 {object} model.RunCancelResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/runs/{runId}/cancel [post]
func (h *RunHandler) Cancel(c *fiber.Ctx) error {
	runID := c.Params("runId")
	if runID == "" {
		return response.ValidationError(c, "Run ID is required", nil)
	}

	result, err := h.service.CancelRun(c.UserContext(), runID)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			return response.NotFound(c, "Run not found")
		}
		if errors.Is(err, service.ErrRunFinished) {
			return response.Conflict(c, "Run already finished")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
