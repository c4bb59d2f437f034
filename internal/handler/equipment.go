package handler

import (
	"errors"

	"github.com/gearshelf/api/internal/middleware"
	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/service"
	"github.com/gearshelf/api/internal/session"
	"github.com/gearshelf/api/pkg/response"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type EquipmentHandler struct {
	service   *service.SaveService
	validator *validator.Validate
}

func NewEquipmentHandler(svc *service.SaveService, v *validator.Validate) *EquipmentHandler {
	return &EquipmentHandler{
		service:   svc,
		validator: v,
	}
}

// Save handles POST /api/equipment
// @Summary      Save reviewed equipment
// @Description  Creates or links the equipment type, then creates the unit that references it
// @Tags         Equipment
// @Accept       json
// @Produce      json
// @Param        request body model.EquipmentSaveRequest true "Reviewed form"
// @Success      201 {object} model.EquipmentSaveResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/equipment [post]
func (h *EquipmentHandler) Save(c *fiber.Ctx) error {
	var req model.EquipmentSaveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if category, ok := model.MapCategory(req.Category); ok {
		req.Category = category
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Save(c.UserContext(), middleware.GetSession(c), &req)
	if err != nil {
		var partial *service.PartialFailureError
		switch {
		case errors.As(err, &partial):
			return response.PartialFailure(c, "Equipment type saved but the unit could not be created", fiber.Map{
				"skuId":       partial.SKUID,
				"skuExisting": partial.Existing,
			})
		case errors.Is(err, session.ErrNoSession):
			return response.Unauthorized(c, "No active session")
		case errors.Is(err, service.ErrTypeRecordFailed):
			return response.NetworkFailure(c, "Failed to create equipment type")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	return response.Created(c, result)
}
