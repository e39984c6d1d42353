package handler

import (
	"net/http"

	"pharmacy/internal/apierror"
	"pharmacy/internal/dto"
	"pharmacy/internal/model"
	"pharmacy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StockHandler struct{ svc service.StockService }

func NewStockHandler(svc service.StockService) *StockHandler { return &StockHandler{svc: svc} }

// Execute godoc
// @Summary      Execute a stock operation
// @Description  Applies SALE, PURCHASE, ADJUSTMENT or TRANSFER atomically. Without batch_id a SALE is allocated FIFO by expiry.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.StockOperationRequest true "Operation"
// @Success      201  {object} dto.StockOperationResponse
// @Failure      409  {object} apierror.StockError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/stock/operations [post]
func (h *StockHandler) Execute(c *gin.Context) {
	var req dto.StockOperationRequest
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

	opID, err := h.svc.Execute(c.Request.Context(), service.StockCommand{
		ProductID:   productID,
		BatchID:     batchID,
		Quantity:    req.Quantity,
		Type:        model.StockOperationType(req.Type),
		Reason:      req.Reason,
		UserID:      &userID,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.StockOperationResponse{OperationID: opID.String()})
}

// GetOperation godoc
// @Summary      Get a stock operation with its movements
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Operation UUID"
// @Success      200 {object} dto.StockOperationDetail
// @Failure      404 {object} apierror.APIError
// @Router       /v1/stock/operations/{id} [get]
func (h *StockHandler) GetOperation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetOperation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Validate godoc
// @Summary      Check whether a quantity can be taken
// @Description  Always 200 for a well-formed request; problems are listed in the result.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.StockValidationRequest true "Check"
// @Success      200  {object} dto.StockValidationResult
// @Router       /v1/stock/validate [post]
func (h *StockHandler) Validate(c *gin.Context) {
	var req dto.StockValidationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	batchID, ok := optionalUUID(c, req.BatchID, "batch_id")
	if !ok {
		return
	}
	resp, err := h.svc.ValidateStockAvailability(c.Request.Context(), productID, req.Quantity, batchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Available godoc
// @Summary      Available stock of a product
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        product_id path  string true  "Product UUID"
// @Param        branch_id  query string false "Branch UUID"
// @Success      200 {object} dto.AvailableStockResponse
// @Router       /v1/stock/available/{product_id} [get]
func (h *StockHandler) Available(c *gin.Context) {
	productID, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	var branch *string
	if b := c.Query("branch_id"); b != "" {
		branch = &b
	}
	branchID, ok := optionalUUID(c, branch, "branch_id")
	if !ok {
		return
	}
	n, err := h.svc.GetAvailableStock(c.Request.Context(), productID, branchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AvailableStockResponse{ProductID: productID.String(), BranchID: branch, Available: n})
}

func optionalUUID(c *gin.Context, raw *string, field string) (*uuid.UUID, bool) {
	if raw == nil {
		return nil, true
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid "+field))
		return nil, false
	}
	return &id, true
}
