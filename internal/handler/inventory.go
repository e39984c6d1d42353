package handler

import (
	"net/http"
	"strconv"

	"pharmacy/internal/apierror"
	"pharmacy/internal/dto"
	"pharmacy/internal/service"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	svc         service.InventoryService
	defaultDays int
}

func NewInventoryHandler(svc service.InventoryService, defaultDays int) *InventoryHandler {
	return &InventoryHandler{svc: svc, defaultDays: defaultDays}
}

// LowStock godoc
// @Summary      Products below their minimum stock level
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.LowStockAlert
// @Router       /v1/inventory/alerts [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	resp, err := h.svc.LowStockAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Expiring godoc
// @Summary      Stocked batches expiring within a window
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        days query int false "Window in days"
// @Success      200 {array} dto.ExpiringBatch
// @Router       /v1/inventory/expiring [get]
func (h *InventoryHandler) Expiring(c *gin.Context) {
	days := h.defaultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, apierror.New("days must be a non-negative integer"))
			return
		}
		days = n
	}
	resp, err := h.svc.ExpiringBatches(c.Request.Context(), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movements godoc
// @Summary      Stock movement audit trail
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        product_id query string false "Product UUID"
// @Param        type       query string false "IN | OUT | ADJUSTMENT | TRANSFER"
// @Param        page       query int    false "Page (default 1)"
// @Param        limit      query int    false "Page size (default 100)"
// @Success      200 {object} dto.MovementListResponse
// @Router       /v1/inventory/movements [get]
func (h *InventoryHandler) Movements(c *gin.Context) {
	var filter dto.MovementFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
