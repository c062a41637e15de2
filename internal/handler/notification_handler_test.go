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

type notificationServiceMock struct {
	userID     string
	unreadOnly bool
	page       int
	pageSize   int
	markErr    error
}

func (m *notificationServiceMock) List(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	m.userID, m.unreadOnly, m.page, m.pageSize = userID, unreadOnly, page, pageSize
	return []models.Notification{{ID: "n1", Title: "Certificate Issued"}}, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: 1}, nil
}

func (m *notificationServiceMock) UnreadCount(ctx context.Context, userID string) (int, error) {
	return 4, nil
}

func (m *notificationServiceMock) MarkRead(ctx context.Context, userID, id string) error {
	return m.markErr
}

func (m *notificationServiceMock) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return 3, nil
}

func TestNotificationHandlerList(t *testing.T) {
	svc := &notificationServiceMock{}
	handler := NewNotificationHandler(svc)
	c, w := newTestContext(t, http.MethodGet, "/notifications?unread=true&page=2&page_size=5", nil, studentClaims)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-user-1", svc.userID)
	assert.True(t, svc.unreadOnly)
	assert.Equal(t, 2, svc.page)
	assert.Equal(t, 5, svc.pageSize)
	pagination := decodeEnvelope(t, w)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 1, pagination["total_count"])
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	handler := NewNotificationHandler(&notificationServiceMock{})
	c, w := newTestContext(t, http.MethodGet, "/notifications/unread-count", nil, studentClaims)

	handler.UnreadCount(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 4, data["unread"])
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	handler := NewNotificationHandler(&notificationServiceMock{})
	c, w := newTestContext(t, http.MethodPost, "/notifications/n1/read", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}

	handler.MarkRead(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNotificationHandlerMarkReadMissing(t *testing.T) {
	handler := NewNotificationHandler(&notificationServiceMock{markErr: appErrors.Clone(appErrors.ErrNotFound, "notification not found")})
	c, w := newTestContext(t, http.MethodPost, "/notifications/n9/read", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "n9"}}

	handler.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
