package handler

import (
	"net/http"
	"time"

	"pharmacy/internal/apierror"
	"pharmacy/internal/dto"
	"pharmacy/internal/model"
	"pharmacy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReservationsHandler struct {
	svc        service.ReservationService
	defaultTTL time.Duration
}

func NewReservationsHandler(svc service.ReservationService, defaultTTL time.Duration) *ReservationsHandler {
	return &ReservationsHandler{svc: svc, defaultTTL: defaultTTL}
}

// Reserve godoc
// @Summary      Place a stock hold
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ReserveStockRequest true "Hold"
// @Success      201  {object} map[string]string
// @Failure      409  {object} apierror.CheckError
// @Router       /v1/reservations [post]
func (h *ReservationsHandler) Reserve(c *gin.Context) {
	var req dto.ReserveStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	batchID, ok := optionalUUID(c, req.BatchID, "batch_id")
	if !ok {
		return
	}
	expiresAt := time.Now().Add(h.defaultTTL)
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("Invalid expires_at"))
			return
		}
		expiresAt = t
	}

	id, err := h.svc.Reserve(c.Request.Context(), service.ReserveCommand{
		ProductID:   productID,
		BatchID:     batchID,
		Quantity:    req.Quantity,
		Type:        model.ReservationType(req.Type),
		ReferenceID: req.ReferenceID,
		ExpiresAt:   expiresAt,
		UserID:      userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reservation_id": id.String()})
}

func (h *ReservationsHandler) Release(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Release(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListActive godoc
// @Summary      Live holds on a product
// @Tags         reservations
// @Produce      json
// @Security     BearerAuth
// @Param        product_id path string true "Product UUID"
// @Success      200 {array} dto.ReservationResponse
// @Router       /v1/reservations/product/{product_id} [get]
func (h *ReservationsHandler) ListActive(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	resp, err := h.svc.ListActive(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cleanup godoc
// @Summary      Delete expired holds now
// @Tags         reservations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.CleanupResponse
// @Router       /v1/reservations/cleanup [post]
func (h *ReservationsHandler) Cleanup(c *gin.Context) {
	n, err := h.svc.CleanupExpired(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CleanupResponse{Removed: n})
}
