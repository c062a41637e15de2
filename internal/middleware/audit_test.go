package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

type auditWriterStub struct {
	logs []*models.AuditLog
}

func (s *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func newAuditRouter(writer AuditWriter, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/bookings/:id/approve",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
			c.Next()
		},
		Audit(writer, models.AuditActionBookingDecision, "hall_booking"),
		func(c *gin.Context) { c.Status(status) },
	)
	return r
}

func TestAuditRecordsSuccessfulRequest(t *testing.T) {
	writer := &auditWriterStub{}
	r := newAuditRouter(writer, http.StatusOK)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings/booking-1/approve", nil)
	r.ServeHTTP(w, req)

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, models.AuditActionBookingDecision, entry.Action)
	assert.Equal(t, "hall_booking", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "booking-1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), "/bookings/:id/approve")
}

func TestAuditSkipsFailedRequest(t *testing.T) {
	writer := &auditWriterStub{}
	r := newAuditRouter(writer, http.StatusConflict)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bookings/booking-1/approve", nil))

	assert.Empty(t, writer.logs)
}
