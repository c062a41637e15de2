package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/certifytrack-api/internal/middleware"
	"github.com/noah-isme/certifytrack-api/internal/models"
	"github.com/noah-isme/certifytrack-api/pkg/response"
)

type certificateService interface {
	GenerateForEvent(ctx context.Context, actor models.Actor, eventID string) (*models.CertificateIssueReport, error)
	Verify(ctx context.Context, code string) (*models.CertificateVerification, bool, error)
	ListMine(ctx context.Context, actor models.Actor) ([]models.Certificate, error)
	DownloadLink(ctx context.Context, actor models.Actor, id string) (*models.CertificateDownload, error)
	OpenDownload(ctx context.Context, token string) (io.ReadCloser, string, error)
}

// CertificateHandler exposes certificate issuance, verification and download.
type CertificateHandler struct {
	service certificateService
}

// NewCertificateHandler builds a new handler.
func NewCertificateHandler(service certificateService) *CertificateHandler {
	return &CertificateHandler{service: service}
}

// Generate godoc
// @Summary Issue certificates for a completed event
// @Tags Certificates
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events/{id}/certificates [post]
func (h *CertificateHandler) Generate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, err := h.service.GenerateForEvent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Verify godoc
// @Summary Verify a certificate by code
// @Tags Certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/verify/{code} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	result, hit, err := h.service.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Mine godoc
// @Summary List the signed-in student's certificates
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /certificates/me [get]
func (h *CertificateHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	certs, err := h.service.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// DownloadLink godoc
// @Summary Create a signed download link
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /certificates/{id}/download-link [post]
func (h *CertificateHandler) DownloadLink(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.service.DownloadLink(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a certificate through a signed token
// @Tags Certificates
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /certificates/download/{token} [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	rc, filename, err := h.service.OpenDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, nil)
}
