package handler

import (
	"net/http"

	"pharmacy/internal/dto"
	"pharmacy/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductsHandler struct {
	svc     service.ProductService
	batches service.BatchService
}

func NewProductsHandler(svc service.ProductService, batches service.BatchService) *ProductsHandler {
	return &ProductsHandler{svc: svc, batches: batches}
}

// Create godoc
// @Summary      Create a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateProductRequest true "Product"
// @Success      201  {object} dto.ProductResponse
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/products [post]
func (h *ProductsHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary      List products
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        code     query string false "Code prefix"
// @Param        name     query string false "Name contains"
// @Param        category query string false "Category"
// @Param        active   query string false "false | all"
// @Param        page     query int    false "Page (default 1)"
// @Param        limit    query int    false "Page size (default 20)"
// @Success      200 {object} dto.ProductListResponse
// @Router       /v1/products [get]
func (h *ProductsHandler) List(c *gin.Context) {
	var filter dto.ProductFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Get a product with committed and available stock
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Product UUID"
// @Success      200 {object} dto.ProductResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/products/{id} [get]
func (h *ProductsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) Deactivate(c *gin.Context) {
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

// Batches godoc
// @Summary      List the batches of a product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string true  "Product UUID"
// @Param        all query bool   false "Include inactive batches"
// @Success      200 {array} dto.BatchResponse
// @Router       /v1/products/{id}/batches [get]
func (h *ProductsHandler) Batches(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.batches.ListByProduct(c.Request.Context(), id, c.Query("all") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
