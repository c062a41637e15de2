package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/response"
)

type eventService interface {
	Create(ctx context.Context, actor models.Actor, req models.CreateEventRequest) (*models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error)
	UpdateStatus(ctx context.Context, actor models.Actor, id string, req models.UpdateEventStatusRequest) (*models.Event, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.Event, error)
}

type hallAssigner interface {
	AssignHallToEvent(ctx context.Context, eventID string) (*models.Hall, error)
}

// EventHandler exposes club events.
type EventHandler struct {
	service  eventService
	assigner hallAssigner
}

// NewEventHandler builds a new handler.
func NewEventHandler(service eventService, assigner hallAssigner) *EventHandler {
	return &EventHandler{service: service, assigner: assigner}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param club_id query string false "Club filter"
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter := models.EventFilter{
		ClubID:   c.Query("club_id"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		filter.Statuses = []models.EventStatus{models.EventStatus(raw)}
	}
	events, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Create godoc
// @Summary Create an event
// @Description Events created as scheduled are assigned their preferred or backup hall when free
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body models.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid event payload"))
		return
	}
	event, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// UpdateStatus godoc
// @Summary Move an event to a later status
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body models.UpdateEventStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/status [patch]
func (h *EventHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateEventStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status payload"))
		return
	}
	event, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Cancel godoc
// @Summary Cancel an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	event, err := h.service.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// AssignHall godoc
// @Summary Retry hall assignment for an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/assign-hall [post]
func (h *EventHandler) AssignHall(c *gin.Context) {
	hall, err := h.assigner.AssignHallToEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"assigned": hall != nil, "hall": hall}, nil)
}
