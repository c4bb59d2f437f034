package handler

import (
	"github.com/gearshelf/api/internal/client"
	"github.com/gearshelf/api/internal/model"
	"github.com/gearshelf/api/internal/service"
	"github.com/gearshelf/api/pkg/response"
	"github.com/gofiber/fiber/v2"
)

// CatalogHandler exposes read-only views of the backend catalog and the orphan ledger
type CatalogHandler struct {
	backend *client.BackendClient
	orphans *service.OrphanService
}

func NewCatalogHandler(backend *client.BackendClient, orphans *service.OrphanService) *CatalogHandler {
	return &CatalogHandler{
		backend: backend,
		orphans: orphans,
	}
}

// Categories handles GET /api/categories
// @Summary      Form options
// @Description  Equipment categories with subcategories, conditions and unit statuses
// @Tags         Catalog
// @Produce      json
// @Success      200 {object} model.CategoriesResponse
// @Security     BearerAuth
// @Router       /api/categories [get]
func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	return response.OK(c, model.NewCategoriesResponse())
}

// Inventory handles GET /api/inventory
// @Summary      List units
// @Tags         Catalog
// @Produce      json
// @Param        status    query string false "Unit status"
// @Param        condition query string false "Condition"
// @Param        sku_id    query string false "Equipment type ID"
// @Success      200 {object} model.InventoryListResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/inventory [get]
func (h *CatalogHandler) Inventory(c *fiber.Ctx) error {
	filter := model.InventoryFilter{
		Status:    c.Query("status"),
		Condition: c.Query("condition"),
		SKUID:     c.Query("sku_id"),
	}

	result, err := h.backend.ListInventory(c.UserContext(), filter)
	if err != nil {
		return response.NetworkFailure(c, "Failed to list inventory")
	}
	return response.OK(c, result)
}

// SKUs handles GET /api/skus
// @Summary      List equipment types
// @Tags         Catalog
// @Produce      json
// @Param        category          query string false "Category"
// @Param        group_by_category query bool   false "Group by category"
// @Success      200 {object} model.SKUListResponse
// @Failure      502 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/skus [get]
func (h *CatalogHandler) SKUs(c *fiber.Ctx) error {
	filter := model.SKUFilter{
		Category:        c.Query("category"),
		GroupByCategory: c.QueryBool("group_by_category"),
	}

	result, err := h.backend.ListSKUs(c.UserContext(), filter)
	if err != nil {
		return response.NetworkFailure(c, "Failed to list equipment types")
	}
	return response.OK(c, result)
}

// Orphans handles GET /api/orphans
// @Summary      Orphaned equipment types
// @Description  Type records created by a save whose unit write failed
// @Tags         Catalog
// @Produce      json
// @Success      200 {array} model.OrphanRecord
// @Security     BearerAuth
// @Router       /api/orphans [get]
func (h *CatalogHandler) Orphans(c *fiber.Ctx) error {
	records, err := h.orphans.List(c.UserContext())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{
		"orphans": records,
		"count":   len(records),
	})
}

// ResolveOrphan handles DELETE /api/orphans/:skuId
// @Summary      Mark an orphan as cleaned up
// @Tags         Catalog
// @Param        skuId path string true "Equipment type ID"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orphans/{skuId} [delete]
func (h *CatalogHandler) ResolveOrphan(c *fiber.Ctx) error {
	skuID := c.Params("skuId")
	ok, err := h.orphans.Resolve(c.UserContext(), skuID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	if !ok {
		return response.NotFound(c, "Orphan not found")
	}
	return response.OK(c, fiber.Map{"success": true, "skuId": skuID})
}
