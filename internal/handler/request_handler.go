package handler

import (
	"net/http"
	"time"

	"alumniportal/internal/lifecycle"
	"alumniportal/internal/middleware"
	"alumniportal/internal/model"
	"alumniportal/internal/query"
	"alumniportal/pkg/pagination"
	"alumniportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateRequestDTO struct {
	FeeID          string `json:"fee_id" binding:"required,uuid"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=100"`
	DeliveryMethod string `json:"delivery_method" binding:"omitempty,oneof=PICKUP HOME_DELIVERY"`
	TargetBranchID string `json:"target_branch_id" binding:"omitempty,uuid"`
	AttachmentRef  string `json:"attachment_ref"`
	Details        string `json:"details"`
}

type RecordPaymentDTO struct {
	Amount      string `json:"amount" binding:"required"`
	ExternalRef string `json:"external_ref" binding:"required,max=100"`
}

type ChangeStatusDTO struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type RejectDTO struct {
	Reason string `json:"reason"`
}

// RequestHandler exposes one request type's lifecycle over HTTP. The same
// handler is wired three times with different managers and URL segments.
type RequestHandler struct {
	segment string
	manager *lifecycle.Manager
	queries *query.RequestQueryService
}

func NewRequestHandler(segment string, manager *lifecycle.Manager, queries *query.RequestQueryService) *RequestHandler {
	return &RequestHandler{segment: segment, manager: manager, queries: queries}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/" + h.segment + "/requests")
	{
		requests.POST("", middleware.RequireAlumni(), h.Create)
		requests.GET("", middleware.RequireCapability(model.CapRequestsRead), h.List)
		requests.GET("/:id", middleware.RequireAuth(), h.Get)
		requests.POST("/:id/payments", middleware.RequireAuth(), h.RecordPayment)
		requests.PUT("/:id/approve", middleware.RequireCapability(model.CapRequestsWrite), h.Approve)
		requests.PUT("/:id/reject", middleware.RequireCapability(model.CapRequestsWrite), h.Reject)
		requests.PUT("/:id/status", middleware.RequireCapability(model.CapRequestsWrite), h.ChangeStatus)
	}
}

// Create submits a new monetary request for the authenticated alumni
// @Summary      Create a service request
// @Description  Creates the request exactly once per idempotency key, debiting the wallet first and leaving the remainder as a gateway obligation
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      CreateRequestDTO  true  "Create Request Payload"
// @Success      201      {object}  response.Response
// @Success      200      {object}  response.Response "returned unchanged for a duplicate submission"
// @Failure      422      {object}  response.Response "fee inactive or out of season"
// @Router       /api/{type}/requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	feeID, err := uuid.Parse(req.FeeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid fee_id"))
		return
	}

	input := lifecycle.CreateInput{
		OwnerID:        actor.ID,
		FeeID:          feeID,
		IdempotencyKey: req.IdempotencyKey,
		DeliveryMethod: req.DeliveryMethod,
		AttachmentRef:  req.AttachmentRef,
		Details:        req.Details,
	}
	if req.TargetBranchID != "" {
		branchID, parseErr := uuid.Parse(req.TargetBranchID)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid target_branch_id"))
			return
		}
		input.TargetBranchID = &branchID
	}

	result, err := h.manager.CreateRequest(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, response.Success(status, result.Request))
}

// List returns a page of request summaries scoped to the caller's branch
// @Summary      List requests
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status           query  string  false  "Status filter"
// @Param        delivery_method  query  string  false  "Delivery method filter"
// @Param        q                query  string  false  "Free text over owner name/email"
// @Success      200  {object}  response.Response
// @Router       /api/{type}/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	params := pagination.Parse(c)

	filter := query.Filter{
		Status:         c.Query("status"),
		DeliveryMethod: c.Query("delivery_method"),
		Text:           c.Query("q"),
		Page:           params.Page,
		Limit:          params.Limit,
		SortBy:         c.DefaultQuery("sort_by", "created_at"),
		SortDesc:       c.DefaultQuery("order", "desc") == "desc",
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &t
		}
	}

	items, total, err := h.queries.List(c.Request.Context(), actor, h.manager.Definition().Type, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, filter.Page, filter.Limit, total))
}

func (h *RequestHandler) Get(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	detail, err := h.manager.GetRequest(c.Request.Context(), actor, requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// RecordPayment appends an external gateway payment to the request's ledger
// @Summary      Record a gateway payment
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      RecordPaymentDTO  true  "Payment Payload"
// @Success      200      {object}  response.Response
// @Failure      409      {object}  response.Response "already fully settled"
// @Router       /api/{type}/requests/{id}/payments [post]
func (h *RequestHandler) RecordPayment(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	var req RecordPaymentDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid amount"))
		return
	}

	result, err := h.manager.RecordGatewayPayment(c.Request.Context(), actor, requestID, amount, req.ExternalRef)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

func (h *RequestHandler) Approve(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	result, err := h.manager.ApproveRequest(c.Request.Context(), actor, requestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

func (h *RequestHandler) Reject(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	var req RejectDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body — reason is optional
		req.Reason = ""
	}

	result, err := h.manager.RejectRequest(c.Request.Context(), actor, requestID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

func (h *RequestHandler) ChangeStatus(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request id"))
		return
	}

	var req ChangeStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.manager.ChangeStatus(c.Request.Context(), actor, requestID, req.Status, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
