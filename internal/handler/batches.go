package handler

import (
	"net/http"

	"pharmacy/internal/dto"
	"pharmacy/internal/service"

	"github.com/gin-gonic/gin"
)

type BatchesHandler struct{ svc service.BatchService }

func NewBatchesHandler(svc service.BatchService) *BatchesHandler { return &BatchesHandler{svc: svc} }

// Receive godoc
// @Summary      Receive a batch
// @Description  Creates the batch and records a PURCHASE operation for the received quantity.
// @Tags         batches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ReceiveBatchRequest true "Batch"
// @Success      201  {object} dto.BatchResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/batches [post]
func (h *BatchesHandler) Receive(c *gin.Context) {
	var req dto.ReceiveBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Receive(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *BatchesHandler) Deactivate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
