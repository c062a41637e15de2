package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, actor models.Actor, req models.CreateHallBookingRequest) (*models.HallBooking, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.HallBooking, error)
	Reject(ctx context.Context, actor models.Actor, id string, reason string) (*models.HallBooking, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.HallBooking, error)
	ListPending(ctx context.Context) ([]models.HallBooking, error)
	List(ctx context.Context, filter models.HallBookingFilter) ([]models.HallBooking, error)
	AvailableHalls(ctx context.Context, query models.AvailableHallsQuery) ([]models.Hall, error)
	ListHalls(ctx context.Context) ([]models.Hall, error)
}

// BookingHandler exposes halls and hall bookings.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// ListHalls godoc
// @Summary List halls
// @Tags Halls
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /halls [get]
func (h *BookingHandler) ListHalls(c *gin.Context) {
	halls, err := h.service.ListHalls(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, halls, nil)
}

// AvailableHalls godoc
// @Summary List halls free for a window
// @Tags Halls
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start_time query string true "Start time (HH:MM)"
// @Param end_time query string true "End time (HH:MM)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /halls/available [get]
func (h *BookingHandler) AvailableHalls(c *gin.Context) {
	var query models.AvailableHallsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid availability query"))
		return
	}
	halls, err := h.service.AvailableHalls(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, halls, nil)
}

// Create godoc
// @Summary Book a hall
// @Description Free windows are approved immediately; overlapping requests stay pending
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body models.CreateHallBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateHallBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid booking payload"))
		return
	}
	booking, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param hall_id query string false "Hall filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.HallBookingFilter{HallID: c.Query("hall_id")}
	if raw := c.Query("status"); raw != "" {
		status := models.HallBookingStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			response.Error(c, bindError(err, "invalid date"))
			return
		}
		filter.Date = &d
	}
	bookings, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// ListPending godoc
// @Summary List bookings awaiting approval
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bookings/pending [get]
func (h *BookingHandler) ListPending(c *gin.Context) {
	bookings, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Approve godoc
// @Summary Approve a pending booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/approve [post]
func (h *BookingHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	booking, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Reject godoc
// @Summary Reject a pending booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body models.RejectHallBookingRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bookings/{id}/reject [post]
func (h *BookingHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.RejectHallBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid rejection payload"))
		return
	}
	booking, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	booking, err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}
