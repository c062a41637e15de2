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

type bookingServiceMock struct {
	createStatus models.HallBookingStatus
	approveErr   error
	gotActor     models.Actor
	gotReason    string
	gotFilter    models.HallBookingFilter
	gotQuery     models.AvailableHallsQuery
}

func (m *bookingServiceMock) Create(ctx context.Context, actor models.Actor, req models.CreateHallBookingRequest) (*models.HallBooking, error) {
	m.gotActor = actor
	return &models.HallBooking{ID: "booking-1", HallID: req.HallID, Status: m.createStatus, StartTime: req.StartTime, EndTime: req.EndTime}, nil
}

func (m *bookingServiceMock) Approve(ctx context.Context, actor models.Actor, id string) (*models.HallBooking, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return &models.HallBooking{ID: id, Status: models.BookingStatusApproved}, nil
}

func (m *bookingServiceMock) Reject(ctx context.Context, actor models.Actor, id string, reason string) (*models.HallBooking, error) {
	m.gotReason = reason
	return &models.HallBooking{ID: id, Status: models.BookingStatusRejected, RejectionReason: &reason}, nil
}

func (m *bookingServiceMock) Cancel(ctx context.Context, actor models.Actor, id string) (*models.HallBooking, error) {
	return &models.HallBooking{ID: id, Status: models.BookingStatusCancelled}, nil
}

func (m *bookingServiceMock) ListPending(ctx context.Context) ([]models.HallBooking, error) {
	return []models.HallBooking{{ID: "booking-2", Status: models.BookingStatusPending}}, nil
}

func (m *bookingServiceMock) List(ctx context.Context, filter models.HallBookingFilter) ([]models.HallBooking, error) {
	m.gotFilter = filter
	return []models.HallBooking{}, nil
}

func (m *bookingServiceMock) AvailableHalls(ctx context.Context, query models.AvailableHallsQuery) ([]models.Hall, error) {
	m.gotQuery = query
	return []models.Hall{{ID: "hall-1", Name: "Seminar Hall"}}, nil
}

func (m *bookingServiceMock) ListHalls(ctx context.Context) ([]models.Hall, error) {
	return []models.Hall{{ID: "hall-1"}}, nil
}

func TestBookingHandlerCreate(t *testing.T) {
	svc := &bookingServiceMock{createStatus: models.BookingStatusPending}
	handler := NewBookingHandler(svc)
	body := map[string]interface{}{
		"hall_id":      "3b1f4a0e-2c7d-4e55-9d2a-6f1c0b9e7a21",
		"booking_date": "2024-03-15",
		"start_time":   "10:00",
		"end_time":     "12:00",
	}
	c, w := newTestContext(t, http.MethodPost, "/bookings", body, organizerClaims)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "org-1", svc.gotActor.ID)
	assert.Equal(t, models.RoleClubOrganizer, svc.gotActor.Role)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "PENDING", data["status"])
	assert.Equal(t, "10:00:00", data["start_time"])
}

func TestBookingHandlerCreateRequiresUser(t *testing.T) {
	handler := NewBookingHandler(&bookingServiceMock{})
	c, w := newTestContext(t, http.MethodPost, "/bookings", `{}`, nil)

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingHandlerCreateInvalidBody(t *testing.T) {
	handler := NewBookingHandler(&bookingServiceMock{})
	c, w := newTestContext(t, http.MethodPost, "/bookings", `not-json`, organizerClaims)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerApproveConflict(t *testing.T) {
	handler := NewBookingHandler(&bookingServiceMock{approveErr: appErrors.ErrBookingConflict})
	c, w := newTestContext(t, http.MethodPost, "/bookings/booking-1/approve", nil, adminClaims)
	c.Params = []gin.Param{{Key: "id", Value: "booking-1"}}

	handler.Approve(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "BOOKING_CONFLICT", errBody["code"])
}

func TestBookingHandlerRejectPassesReason(t *testing.T) {
	svc := &bookingServiceMock{}
	handler := NewBookingHandler(svc)
	c, w := newTestContext(t, http.MethodPost, "/bookings/booking-1/reject", map[string]string{"reason": "  hall under repair "}, adminClaims)
	c.Params = []gin.Param{{Key: "id", Value: "booking-1"}}

	handler.Reject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "  hall under repair ", svc.gotReason)
}

func TestBookingHandlerListFilters(t *testing.T) {
	svc := &bookingServiceMock{}
	handler := NewBookingHandler(svc)
	c, w := newTestContext(t, http.MethodGet, "/bookings?hall_id=hall-1&status=APPROVED&date=2024-03-15", nil, adminClaims)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hall-1", svc.gotFilter.HallID)
	require.NotNil(t, svc.gotFilter.Status)
	assert.Equal(t, models.BookingStatusApproved, *svc.gotFilter.Status)
	require.NotNil(t, svc.gotFilter.Date)
	assert.Equal(t, 15, svc.gotFilter.Date.Day())
}

func TestBookingHandlerListBadDate(t *testing.T) {
	handler := NewBookingHandler(&bookingServiceMock{})
	c, w := newTestContext(t, http.MethodGet, "/bookings?date=15-03-2024", nil, adminClaims)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerAvailableHalls(t *testing.T) {
	svc := &bookingServiceMock{}
	handler := NewBookingHandler(svc)
	c, w := newTestContext(t, http.MethodGet, "/halls/available?date=2024-03-15&start_time=09:00&end_time=11:00", nil, organizerClaims)

	handler.AvailableHalls(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-15", svc.gotQuery.Date)
	assert.Equal(t, "09:00", svc.gotQuery.StartTime)
	assert.Equal(t, "11:00", svc.gotQuery.EndTime)
}
