package handler

import (
	"errors"

	"github.com/gearshelf/api/internal/audio"
	"github.com/gearshelf/api/internal/capture"
	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// SampleRequest is the body for POST /api/capture/sample
type SampleRequest struct {
	SampleText string `json:"sampleText" validate:"omitempty,max=5000"`
}

type CaptureHandler struct {
	session   *capture.Session
	validator *validator.Validate
}

func NewCaptureHandler(session *capture.Session, v *validator.Validate) *CaptureHandler {
	return &CaptureHandler{
		session:   session,
		validator: v,
	}
}

// State handles GET /api/capture
// @Summary      Capture state
// @Tags         Capture
// @Produce      json
// @Success      200 {object} model.CaptureState
// @Security     BearerAuth
// @Router       /api/capture [get]
func (h *CaptureHandler) State(c *fiber.Ctx) error {
	return response.OK(c, h.session.State())
}

// Start handles POST /api/capture/start
// @Summary      Start recording
// @Description  Opens the microphone and starts the elapsed-seconds counter
// @Tags         Capture
// @Produce      json
// @Success      200 {object} model.CaptureState
// @Failure      403 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/capture/start [post]
func (h *CaptureHandler) Start(c *fiber.Ctx) error {
	err := h.session.Start(c.UserContext())
	switch {
	case err == nil:
		return response.OK(c, h.session.State())
	case errors.Is(err, audio.ErrPermissionDenied):
		return response.PermissionDenied(c, "Failed to access microphone")
	case errors.Is(err, capture.ErrAlreadyRecording):
		return response.Conflict(c, "Already recording")
	case errors.Is(err, capture.ErrStartAborted):
		return response.Conflict(c, "Recording start was superseded")
	default:
		return response.ServiceError(c, err.Error())
	}
}

// Stop handles POST /api/capture/stop
// @Summary      Stop recording
// @Tags         Capture
// @Produce      json
// @Success      200 {object} model.CaptureState
// @Security     BearerAuth
// @Router       /api/capture/stop [post]
func (h *CaptureHandler) Stop(c *fiber.Ctx) error {
	if err := h.session.Stop(); err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, h.session.State())
}

// Reset handles POST /api/capture/reset
// @Summary      Discard the capture
// @Tags         Capture
// @Produce      json
// @Success      200 {object} model.CaptureState
// @Security     BearerAuth
// @Router       /api/capture/reset [post]
func (h *CaptureHandler) Reset(c *fiber.Ctx) error {
	if err := h.session.Reset(); err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, h.session.State())
}

// Sample handles POST /api/capture/sample
// @Summary      Use sample text
// @Description  Replaces the capture with a text artifact; the device is never opened
// @Tags         Capture
// @Accept       json
// @Produce      json
// @Param        request body SampleRequest false "Sample text, defaults to a camera description"
// @Success      200 {object} model.CaptureState
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/capture/sample [post]
func (h *CaptureHandler) Sample(c *fiber.Ctx) error {
	var req SampleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	text := req.SampleText
	if text == "" {
		text = model.DefaultSampleText
	}
	if err := h.session.UseSample(text); err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, h.session.State())
}
