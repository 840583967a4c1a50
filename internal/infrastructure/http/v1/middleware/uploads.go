package middleware

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/infrastructure/storage/files"
)

// UploadHeaders guards files served from /uploads: no content sniffing, and
// anything other than a raster image is sent as an opaque attachment.
func UploadHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		if !files.Inline(c.Request.URL.Path) {
			h.Set("Content-Type", "application/octet-stream")
			h.Set("Content-Disposition", "attachment")
		}
		c.Next()
	}
}
