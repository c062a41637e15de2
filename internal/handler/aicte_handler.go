package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/certifytrack-api/internal/middleware"
	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/response"
)

type aicteService interface {
	RegisterForEvent(ctx context.Context, actor models.Actor, eventID string) (*models.EventRegistration, error)
	RecordAttendance(ctx context.Context, actor models.Actor, eventID string, req models.RecordAttendanceRequest) (*models.AttendanceResult, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.AICTETransaction, error)
	Reject(ctx context.Context, actor models.Actor, id string, req models.RejectTransactionRequest) (*models.AICTETransaction, error)
	Summary(ctx context.Context, studentID string) (*models.StudentPointsSummary, bool, error)
	MySummary(ctx context.Context, actor models.Actor) (*models.StudentPointsSummary, bool, error)
	ListTransactions(ctx context.Context, actor models.Actor, filter models.AICTETransactionFilter) ([]models.AICTETransaction, error)
	ListCategories(ctx context.Context) ([]models.AICTECategory, error)
	ComplianceReport(ctx context.Context, filter models.StudentFilter) ([]byte, error)
}

// AICTEHandler exposes attendance capture and activity point workflows.
type AICTEHandler struct {
	service aicteService
	now     func() time.Time
}

// NewAICTEHandler builds a new handler.
func NewAICTEHandler(service aicteService) *AICTEHandler {
	return &AICTEHandler{service: service, now: time.Now}
}

// RegisterForEvent godoc
// @Summary Register for an event
// @Description Signs the calling student up for a scheduled or ongoing event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /events/{id}/register [post]
func (h *AICTEHandler) RegisterForEvent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reg, err := h.service.RegisterForEvent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// RecordAttendance godoc
// @Summary Record attendance for an event
// @Description Creates one pending AICTE transaction per present student when the event awards points
// @Tags AICTE
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body models.RecordAttendanceRequest true "Present students"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id}/attendance [post]
func (h *AICTEHandler) RecordAttendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}
	result, err := h.service.RecordAttendance(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListTransactions godoc
// @Summary List AICTE point transactions
// @Description Students see their own rows, mentors see their mentees
// @Tags AICTE
// @Produce json
// @Param student_id query string false "Student filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /aicte/transactions [get]
func (h *AICTEHandler) ListTransactions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.AICTETransactionFilter{StudentID: c.Query("student_id")}
	if raw := c.Query("status"); raw != "" {
		status := models.TransactionStatus(raw)
		filter.Status = &status
	}
	txs, err := h.service.ListTransactions(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txs, nil)
}

// Approve godoc
// @Summary Approve a pending transaction
// @Tags AICTE
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /aicte/transactions/{id}/approve [post]
func (h *AICTEHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	tx, err := h.service.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tx, nil)
}

// Reject godoc
// @Summary Reject a pending transaction
// @Tags AICTE
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param payload body models.RejectTransactionRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /aicte/transactions/{id}/reject [post]
func (h *AICTEHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.RejectTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid rejection payload"))
		return
	}
	tx, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tx, nil)
}

// Summary godoc
// @Summary Points summary for a student
// @Tags AICTE
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /aicte/students/{studentId}/summary [get]
func (h *AICTEHandler) Summary(c *gin.Context) {
	summary, hit, err := h.service.Summary(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// MySummary godoc
// @Summary Points summary for the signed-in student
// @Tags AICTE
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /aicte/me/summary [get]
func (h *AICTEHandler) MySummary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, hit, err := h.service.MySummary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Categories godoc
// @Summary List AICTE activity categories
// @Tags AICTE
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /aicte/categories [get]
func (h *AICTEHandler) Categories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// ComplianceReport godoc
// @Summary Download the AICTE compliance report
// @Tags AICTE
// @Produce text/csv
// @Param department query string false "Department"
// @Param semester query int false "Semester"
// @Success 200 {file} file
// @Router /aicte/reports/compliance [get]
func (h *AICTEHandler) ComplianceReport(c *gin.Context) {
	filter := models.StudentFilter{
		Department: c.Query("department"),
		Semester:   queryInt(c, "semester", 0),
	}
	data, err := h.service.ComplianceReport(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("aicte-compliance-%s.csv", h.now().Format("20060102"))
	response.Attachment(c, filename, "text/csv", data)
}
