package handler

import (
	"net/http"

	"alumniportal/internal/middleware"
	"alumniportal/internal/model"
	"alumniportal/internal/service"
	"alumniportal/pkg/pagination"
	"alumniportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AlumniHandler struct {
	alumniService service.AlumniService
}

func NewAlumniHandler(alumniService service.AlumniService) *AlumniHandler {
	return &AlumniHandler{alumniService: alumniService}
}

func (h *AlumniHandler) RegisterRoutes(router *gin.RouterGroup) {
	alumni := router.Group("/api/alumni")
	{
		alumni.GET("", middleware.RequireCapability(model.CapUsersRead), h.ListAlumni)
		alumni.POST("", middleware.RequireCapability(model.CapUsersWrite), h.CreateAlumni)
		alumni.GET("/:id", middleware.RequireCapability(model.CapUsersRead), h.GetAlumni)
	}
}

// ListAlumni returns paginated alumni profiles
// @Summary      List alumni
// @Tags         alumni
// @Security     BearerAuth
// @Produce      json
// @Param        page   query  int  false  "Page number (default: 1)"
// @Param        limit  query  int  false  "Items per page (default: 20)"
// @Success      200  {object}  response.Response
// @Router       /api/alumni [get]
func (h *AlumniHandler) ListAlumni(c *gin.Context) {
	params := pagination.Parse(c)

	alumni, total, err := h.alumniService.List(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, alumni, params.Page, params.Limit, total))
}

// CreateAlumni registers an alumni profile under a branch
// @Summary      Create alumni
// @Tags         alumni
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateAlumniRequest  true  "Alumni payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/alumni [post]
func (h *AlumniHandler) CreateAlumni(c *gin.Context) {
	var req service.CreateAlumniRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	record, err := h.alumniService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, record))
}

func (h *AlumniHandler) GetAlumni(c *gin.Context) {
	record, err := h.alumniService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}
