package booking

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/model"
)

type Service interface {
	Create(ctx context.Context, customerID uuid.UUID, req *model.CreateBookingRequest) (*model.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*model.BookingDetails, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]*model.BookingDetails, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.BookingDetails, error)
	UpdateByCustomer(ctx context.Context, id, callerID uuid.UUID, req *model.UpdateBookingRequest) (*model.Booking, error)
	UpdateStatusByOwner(ctx context.Context, id, callerID uuid.UUID, status model.BookingStatus) (*model.Booking, error)
	Delete(ctx context.Context, id, callerID uuid.UUID) error
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authn gin.HandlerFunc) {
	bookings := r.Group("/bookings", authn)
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/customer", h.ListCustomerBookings)
		bookings.GET("/owner", h.ListOwnerBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id", h.UpdateBooking)
		bookings.PUT("/status/:id", h.UpdateBookingStatus)
		bookings.DELETE("/:id", h.DeleteBooking)
	}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	booking, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(booking))
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "booking")
	if !ok {
		return
	}

	booking, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(booking))
}

func (h *Handler) ListCustomerBookings(c *gin.Context) {
	list, err := h.svc.ListForCustomer(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) ListOwnerBookings(c *gin.Context) {
	list, err := h.svc.ListForOwner(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) UpdateBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "booking")
	if !ok {
		return
	}

	var req model.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	booking, err := h.svc.UpdateByCustomer(c.Request.Context(), id, middleware.UserID(c), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(booking))
}

func (h *Handler) UpdateBookingStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "booking")
	if !ok {
		return
	}

	var req model.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	booking, err := h.svc.UpdateStatusByOwner(c.Request.Context(), id, middleware.UserID(c), req.Status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(booking))
}

func (h *Handler) DeleteBooking(c *gin.Context) {
	id, ok := handler.ParamID(c, "id", "booking")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("Booking removed", nil))
}
