package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/certifytrack-api/internal/middleware"
	"github.com/noah-isme/certifytrack-api/internal/models"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	Bookings      *BookingHandler
	Events        *EventHandler
	AICTE         *AICTEHandler
	Certificates  *CertificateHandler
	Notifications *NotificationHandler
	Maintenance   *MaintenanceHandler
	Metrics       *MetricsHandler
}

var (
	adminOnly       = middleware.RequireRoles(models.RoleAdmin)
	organizers      = middleware.RequireRoles(models.RoleClubOrganizer, models.RoleAdmin)
	mentors         = middleware.RequireRoles(models.RoleMentor, models.RoleAdmin)
	pointsReaders   = middleware.RequireRoles(models.RoleStudent, models.RoleMentor, models.RoleAdmin)
	studentsOnly    = middleware.RequireRoles(models.RoleStudent)
	certificateUser = middleware.RequireRoles(models.RoleStudent, models.RoleAdmin)
)

// RegisterRoutes mounts the API. authRequired guards every non-public route;
// audit records successful state-changing admin actions.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, authRequired gin.HandlerFunc, audit middleware.AuditWriter) {
	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	api.GET("/certificates/verify/:code", h.Certificates.Verify)
	api.GET("/certificates/download/:token", h.Certificates.Download)

	secured := api.Group("")
	secured.Use(authRequired)

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	secured.GET("/halls", h.Bookings.ListHalls)
	secured.GET("/halls/available", organizers, h.Bookings.AvailableHalls)

	bookings := secured.Group("/bookings")
	bookings.POST("", middleware.RequireRoles(models.RoleClubOrganizer), h.Bookings.Create)
	bookings.GET("", organizers, h.Bookings.List)
	bookings.GET("/pending", adminOnly, h.Bookings.ListPending)
	bookings.POST("/:id/approve", adminOnly, middleware.Audit(audit, models.AuditActionBookingDecision, "hall_booking"), h.Bookings.Approve)
	bookings.POST("/:id/reject", adminOnly, middleware.Audit(audit, models.AuditActionBookingDecision, "hall_booking"), h.Bookings.Reject)
	bookings.POST("/:id/cancel", organizers, h.Bookings.Cancel)

	events := secured.Group("/events")
	events.GET("", h.Events.List)
	events.GET("/:id", h.Events.Get)
	events.POST("", organizers, h.Events.Create)
	events.PATCH("/:id/status", organizers, h.Events.UpdateStatus)
	events.POST("/:id/cancel", organizers, h.Events.Cancel)
	events.POST("/:id/assign-hall", organizers, h.Events.AssignHall)
	events.POST("/:id/register", studentsOnly, h.AICTE.RegisterForEvent)
	events.POST("/:id/attendance", organizers, h.AICTE.RecordAttendance)
	events.POST("/:id/certificates", organizers, h.Certificates.Generate)

	aicte := secured.Group("/aicte")
	aicte.GET("/categories", h.AICTE.Categories)
	aicte.GET("/transactions", pointsReaders, h.AICTE.ListTransactions)
	aicte.POST("/transactions/:id/approve", mentors, h.AICTE.Approve)
	aicte.POST("/transactions/:id/reject", mentors, h.AICTE.Reject)
	aicte.GET("/students/:studentId/summary", mentors, h.AICTE.Summary)
	aicte.GET("/me/summary", studentsOnly, h.AICTE.MySummary)
	aicte.GET("/reports/compliance", mentors, h.AICTE.ComplianceReport)

	secured.GET("/certificates/me", studentsOnly, h.Certificates.Mine)
	secured.POST("/certificates/:id/download-link", certificateUser, h.Certificates.DownloadLink)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.GET("/unread-count", h.Notifications.UnreadCount)
	notifications.POST("/:id/read", h.Notifications.MarkRead)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)

	maintenance := secured.Group("/maintenance", adminOnly)
	maintenance.POST("/events/sweep", h.Maintenance.SweepEvents)
	maintenance.POST("/aicte/reconcile", h.Maintenance.Reconcile)
	maintenance.POST("/aicte/auto-approve", h.Maintenance.AutoApprove)
	maintenance.POST("/certificates/cleanup", h.Maintenance.CleanupCertificates)
	maintenance.GET("/duplicates", h.Maintenance.CheckDuplicates)

	secured.GET("/metrics/snapshot", adminOnly, h.Metrics.Snapshot)
}
