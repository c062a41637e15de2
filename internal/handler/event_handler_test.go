package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
)

type eventServiceMock struct {
	createReq models.CreateEventRequest
	filter    models.EventFilter
	statusErr error
}

func (m *eventServiceMock) Create(ctx context.Context, actor models.Actor, req models.CreateEventRequest) (*models.Event, error) {
	m.createReq = req
	return &models.Event{ID: "event-1", Name: req.Name, Status: models.EventStatusDraft}, nil
}

func (m *eventServiceMock) Get(ctx context.Context, id string) (*models.Event, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
}

func (m *eventServiceMock) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	m.filter = filter
	return []models.Event{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *eventServiceMock) UpdateStatus(ctx context.Context, actor models.Actor, id string, req models.UpdateEventStatusRequest) (*models.Event, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &models.Event{ID: id, Status: req.Status}, nil
}

func (m *eventServiceMock) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Event, error) {
	return &models.Event{ID: id, Status: models.EventStatusCancelled}, nil
}

type hallAssignerMock struct {
	hall *models.Hall
}

func (m *hallAssignerMock) AssignHallToEvent(ctx context.Context, eventID string) (*models.Hall, error) {
	return m.hall, nil
}

func TestEventHandlerCreate(t *testing.T) {
	svc := &eventServiceMock{}
	handler := NewEventHandler(svc, &hallAssignerMock{})
	body := map[string]interface{}{
		"club_id":    "5f0c6a4e-8d9b-4c1a-9f3e-2b7d1e6a0c11",
		"name":       "Hackathon",
		"event_date": "2024-03-15",
		"start_time": "09:30",
	}
	c, w := newTestContext(t, http.MethodPost, "/events", body, organizerClaims)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Hackathon", svc.createReq.Name)
	assert.Equal(t, "09:30:00", svc.createReq.StartTime.String())
}

func TestEventHandlerListPaging(t *testing.T) {
	svc := &eventServiceMock{}
	handler := NewEventHandler(svc, &hallAssignerMock{})
	c, w := newTestContext(t, http.MethodGet, "/events?club_id=club-1&status=scheduled&page=3", nil, studentClaims)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "club-1", svc.filter.ClubID)
	assert.Equal(t, []models.EventStatus{models.EventStatusScheduled}, svc.filter.Statuses)
	assert.Equal(t, 3, svc.filter.Page)
	assert.Equal(t, 20, svc.filter.PageSize)
}

func TestEventHandlerGetMissing(t *testing.T) {
	handler := NewEventHandler(&eventServiceMock{}, &hallAssignerMock{})
	c, w := newTestContext(t, http.MethodGet, "/events/x", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "x"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventHandlerUpdateStatusBackwards(t *testing.T) {
	handler := NewEventHandler(&eventServiceMock{statusErr: appErrors.ErrInvalidTransition}, &hallAssignerMock{})
	c, w := newTestContext(t, http.MethodPatch, "/events/event-1/status", map[string]string{"status": "scheduled"}, organizerClaims)
	c.Params = gin.Params{{Key: "id", Value: "event-1"}}

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestEventHandlerAssignHallNoneFree(t *testing.T) {
	handler := NewEventHandler(&eventServiceMock{}, &hallAssignerMock{})
	c, w := newTestContext(t, http.MethodPost, "/events/event-1/assign-hall", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "event-1"}}

	handler.AssignHall(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["assigned"])
}
