package handlers

import (
	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	"setflow/internal/domain/assetform"
)

// UploadHandler serves POST /uploads: one "file" part, stored as-is.
// image=true restricts the upload to image content.
type UploadHandler struct {
	*BaseHandler
	uploads Uploads
}

func NewUploadHandler(base *BaseHandler, uploads Uploads) *UploadHandler {
	return &UploadHandler{BaseHandler: base, uploads: uploads}
}

func (h *UploadHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.Error(c, apperror.NewValidation("file part is required").WithDetail("field", "file"))
		return
	}
	ctx := c.Request.Context()
	u := upload(fh)

	if c.Query("image") == "true" {
		url, err := h.uploads.UploadImage(ctx, u)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.Created(c, gin.H{"name": fh.Filename, "url": url, "size": fh.Size})
		return
	}

	stored, err := h.uploads.UploadFiles(ctx, []*assetform.Upload{u})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, stored[0])
}
