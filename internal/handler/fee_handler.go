package handler

import (
	"net/http"

	"alumniportal/internal/middleware"
	"alumniportal/internal/model"
	"alumniportal/internal/service"
	"alumniportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type FeeHandler struct {
	feeService service.FeeService
}

func NewFeeHandler(feeService service.FeeService) *FeeHandler {
	return &FeeHandler{feeService: feeService}
}

func (h *FeeHandler) RegisterRoutes(router *gin.RouterGroup) {
	fees := router.Group("/api/fees")
	{
		fees.GET("", middleware.RequireAuth(), h.ListFees)
		fees.POST("", middleware.RequireCapability(model.CapFeesManage), h.CreateFee)
		fees.PUT("/:id", middleware.RequireCapability(model.CapFeesManage), h.UpdateFee)
	}
}

// ListFees returns the currently active fee catalog, optionally filtered by request type
// @Summary      List active fees
// @Tags         fees
// @Security     BearerAuth
// @Produce      json
// @Param        request_type  query  string  false  "MEMBERSHIP, CERTIFICATE or SYNDICATE"
// @Success      200  {object}  response.Response
// @Router       /api/fees [get]
func (h *FeeHandler) ListFees(c *gin.Context) {
	fees, err := h.feeService.ListActive(c.Request.Context(), c.Query("request_type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, fees))
}

// CreateFee adds an entry to the fee catalog
// @Summary      Create fee
// @Tags         fees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateFeeRequest  true  "Fee payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/fees [post]
func (h *FeeHandler) CreateFee(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req service.CreateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	fee, err := h.feeService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, fee))
}

// UpdateFee changes an existing fee's amount, window or active flag
// @Summary      Update fee
// @Tags         fees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                    true  "Fee ID"
// @Param        payload  body  service.UpdateFeeRequest  true  "Fee payload"
// @Success      200  {object}  response.Response
// @Router       /api/fees/{id} [put]
func (h *FeeHandler) UpdateFee(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req service.UpdateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	fee, err := h.feeService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, fee))
}
