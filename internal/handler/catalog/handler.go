package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
)

type Service interface {
	List(ctx context.Context) ([]*model.Service, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
	Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, *model.User, error)
	Update(ctx context.Context, id, callerID uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error)
	Delete(ctx context.Context, id, callerID uuid.UUID) error
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authn gin.HandlerFunc) {
	services := r.Group("/services", authn)
	services.GET("", h.ListServices)

	owner := services.Group("", middleware.RequireRole(model.RoleOwner))
	{
		owner.POST("", h.CreateService)
		owner.GET("/:id", h.GetService)
		owner.PUT("/:id", h.UpdateService)
		owner.DELETE("/:id", h.DeleteService)
	}
}

func (h *Handler) ListServices(c *gin.Context) {
	services, err := h.svc.List(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(services))
}

func (h *Handler) GetService(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "service")
	if !ok {
		return
	}

	svc, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(svc))
}

func (h *Handler) CreateService(c *gin.Context) {
	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	svc, owner, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewMessageResponse(
		fmt.Sprintf("Service created successfully for shop: %s", owner.ShopName), svc))
}

func (h *Handler) UpdateService(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "service")
	if !ok {
		return
	}

	var req model.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	svc, err := h.svc.Update(c.Request.Context(), id, middleware.UserID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(svc))
}

func (h *Handler) DeleteService(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "service")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("Service removed", nil))
}
