package handler

import (
	"net/http"

	"alumniportal/internal/middleware"
	"alumniportal/internal/model"
	"alumniportal/internal/service"
	"alumniportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreditWalletDTO struct {
	Amount string `json:"amount" binding:"required"`
}

type WalletHandler struct {
	walletService service.WalletService
}

func NewWalletHandler(walletService service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/api/wallet")
	{
		wallet.GET("", middleware.RequireAlumni(), h.MyBalance)
		wallet.GET("/:alumni_id", middleware.RequireCapability(model.CapWalletManage), h.Balance)
		wallet.POST("/:alumni_id/credits", middleware.RequireCapability(model.CapWalletManage), h.Credit)
	}
}

// MyBalance returns the authenticated alumni's wallet balance
// @Summary      Get own wallet balance
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/wallet [get]
func (h *WalletHandler) MyBalance(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	balance, err := h.walletService.Balance(c.Request.Context(), actor.ID.String())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, balance))
}

func (h *WalletHandler) Balance(c *gin.Context) {
	balance, err := h.walletService.Balance(c.Request.Context(), c.Param("alumni_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, balance))
}

// Credit tops up an alumni wallet. Debits have no endpoint: they only happen
// inside request creation.
// @Summary      Credit an alumni wallet
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        alumni_id  path  string           true  "Alumni ID"
// @Param        payload    body  CreditWalletDTO  true  "Credit payload"
// @Success      200  {object}  response.Response
// @Router       /api/wallet/{alumni_id}/credits [post]
func (h *WalletHandler) Credit(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req CreditWalletDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	balance, err := h.walletService.Credit(c.Request.Context(), actor, c.Param("alumni_id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, balance))
}
