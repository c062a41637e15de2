package requestid

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the correlation id in both directions.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Inbound ids are echoed only when they look sane; anything else is replaced.
var acceptable = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// Middleware tags each request with a correlation id for logs and responses.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// Value returns the id assigned by Middleware, or "".
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}
