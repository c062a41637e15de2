package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/certifytrack-api/internal/middleware"
	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/response"
)

type maintenanceService interface {
	SweepEvents(ctx context.Context, actor models.Actor, dryRun bool) (*models.SweepReport, error)
	ReconcileTransactions(ctx context.Context, actor models.Actor) (*models.ReconcileReport, error)
	AutoApproveTransactions(ctx context.Context, actor models.Actor) (*models.AutoApproveReport, error)
	CleanupCertificates(ctx context.Context, actor models.Actor) (*models.CertificateCleanupReport, error)
	CheckUniqueness(ctx context.Context) (*models.UniquenessReport, error)
}

// MaintenanceHandler lets admins trigger batch jobs on demand.
type MaintenanceHandler struct {
	service maintenanceService
}

// NewMaintenanceHandler builds a new handler.
func NewMaintenanceHandler(service maintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{service: service}
}

// SweepEvents godoc
// @Summary Advance event statuses
// @Tags Maintenance
// @Produce json
// @Param dry_run query bool false "Report transitions without applying them"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /maintenance/events/sweep [post]
func (h *MaintenanceHandler) SweepEvents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	dryRun := c.Query("dry_run") == "true"
	report, err := h.service.SweepEvents(c.Request.Context(), actor, dryRun)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "dry_run", dryRun)
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// Reconcile godoc
// @Summary Merge duplicate AICTE transactions
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/aicte/reconcile [post]
func (h *MaintenanceHandler) Reconcile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.ReconcileTransactions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// AutoApprove godoc
// @Summary Auto-approve stale pending transactions
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/aicte/auto-approve [post]
func (h *MaintenanceHandler) AutoApprove(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.AutoApproveTransactions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CleanupCertificates godoc
// @Summary Remove duplicate certificates
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/certificates/cleanup [post]
func (h *MaintenanceHandler) CleanupCertificates(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.CleanupCertificates(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CheckDuplicates godoc
// @Summary Report duplicate attendance and transaction pairs
// @Tags Maintenance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /maintenance/duplicates [get]
func (h *MaintenanceHandler) CheckDuplicates(c *gin.Context) {
	report, err := h.service.CheckUniqueness(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
