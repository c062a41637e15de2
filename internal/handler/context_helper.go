package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/certifytrack-api/internal/middleware"
	"github.com/noah-isme/certifytrack-api/internal/models"
	appErrors "github.com/noah-isme/certifytrack-api/pkg/errors"
	"github.com/noah-isme/certifytrack-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := middleware.CurrentClaims(c)
	return claims
}

// actorFromContext writes a 401 and returns false when no user is attached.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return models.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
