package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"setflow/internal/core/apperror"
	"setflow/internal/domain/assetform"
	"setflow/internal/domain/catalogs/asset"
	"setflow/internal/infrastructure/http/v1/dto"
	"setflow/pkg/logger"
)

// Uploads stores form images and attachments. files.Store implements it.
type Uploads interface {
	assetform.ImageUploader
	assetform.FileUploader
}

// maxFormMemory is what a multipart form may buffer before spilling to disk.
const maxFormMemory = 32 << 20

type AssetHandler struct {
	*CatalogHandler[*asset.Asset]
	service *asset.Service
	uploads Uploads
}

func NewAssetHandler(base *BaseHandler, service *asset.Service, uploads Uploads) *AssetHandler {
	return &AssetHandler{
		CatalogHandler: NewCatalogHandler[*asset.Asset](base, service, func() *asset.Asset {
			return asset.NewAsset("", "")
		}),
		service: service,
		uploads: uploads,
	}
}

// Retire handles POST /catalog/assets/:id/retire.
func (h *AssetHandler) Retire(c *gin.Context) {
	assetID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	a, err := h.service.Retire(c.Request.Context(), assetID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// Dispose handles POST /catalog/assets/:id/dispose.
func (h *AssetHandler) Dispose(c *gin.Context) {
	assetID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	a, err := h.service.Dispose(c.Request.Context(), assetID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// Depreciation handles GET /catalog/assets/:id/depreciation?asOf=.
func (h *AssetHandler) Depreciation(c *gin.Context) {
	assetID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	asOf, ok := h.ParseDateQuery(c, "asOf")
	if !ok {
		return
	}
	sum, err := h.service.Depreciation(c.Request.Context(), assetID, asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sum)
}

// FormFields handles GET /catalog/assets/form/fields?categoryId=&assetId=&section=.
// It returns the category template bound to the asset's stored values; a
// categoryId overrides the asset's own category. section restores the
// active form section; unknown values fall back to the first one.
func (h *AssetHandler) FormFields(c *gin.Context) {
	ctx := c.Request.Context()
	categoryID := c.Query("categoryId")
	specs := map[string]any{}

	if raw := c.Query("assetId"); raw != "" {
		assetID, ok := h.parseID(c, raw, "assetId")
		if !ok {
			return
		}
		a, err := h.service.GetByID(ctx, assetID)
		if err != nil {
			h.Error(c, err)
			return
		}
		specs = a.Specifications
		if categoryID == "" {
			categoryID = a.CategoryID
		}
	}
	if categoryID == "" {
		h.Error(c, apperror.NewValidation("categoryId or assetId is required").WithDetail("param", "categoryId"))
		return
	}

	source := h.service.Categories()
	template, err := source.Template(ctx, categoryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	fields, merged := assetform.Bind(template, specs)

	settings, err := source.Depreciation(ctx, categoryID)
	if err != nil {
		logger.Warn(ctx, "depreciation settings unavailable", "category_id", categoryID, "error", err)
		settings = nil
	}
	groups, err := source.Groups(ctx)
	if err != nil {
		logger.Warn(ctx, "category groups unavailable", "error", err)
	}
	if groups == nil {
		groups = []assetform.Group{}
	}

	nav := assetform.NewNavigator()
	nav.Activate(assetform.Section(c.Query("section")))

	h.OK(c, dto.FormFieldsResponse{
		CategoryID:     categoryID,
		Fields:         fields,
		Specifications: merged,
		Depreciation:   settings,
		Groups:         groups,
		Sections:       assetform.Sections,
		ActiveSection:  nav.Active(),
	})
}

// SubmitForm handles POST /catalog/assets/form. The multipart body has a
// "data" JSON part (dto.AssetFormData), an optional "image" file and any
// number of "attachments" files. The image is stored first, then the
// attachments, then the asset is saved; a failed upload saves nothing.
func (h *AssetHandler) SubmitForm(c *gin.Context) {
	ctx := c.Request.Context()
	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
		h.Error(c, apperror.NewValidation("multipart form expected").WithCause(err))
		return
	}
	mf := c.Request.MultipartForm

	var req dto.AssetFormData
	raw := mf.Value["data"]
	if len(raw) == 0 {
		h.Error(c, apperror.NewValidation("data part is required").WithDetail("field", "data"))
		return
	}
	if err := json.Unmarshal([]byte(raw[0]), &req); err != nil {
		h.Error(c, apperror.NewValidation("invalid data part").WithDetail("error", err.Error()))
		return
	}

	var (
		existing *asset.Asset
		err      error
	)
	initial := map[string]any{}
	if req.AssetID != "" {
		assetID, ok := h.parseID(c, req.AssetID, "assetId")
		if !ok {
			return
		}
		if existing, err = h.service.GetByID(ctx, assetID); err != nil {
			h.Error(c, err)
			return
		}
		if initial, err = asset.FormData(existing); err != nil {
			h.Error(c, err)
			return
		}
		dropAttachments(initial, req.RemoveAttachments)
	}

	var saved *asset.Asset
	form := assetform.New(assetform.Config{
		Source: h.service.Categories(),
		Images: h.uploads,
		Files:  h.uploads,
		Submit: h.service.SubmitFunc(existing, func(a *asset.Asset) { saved = a }),
		Alert: assetform.AlerterFunc(func(ctx context.Context, err error) {
			logger.Info(ctx, "asset form rejected", "error", err)
		}),
	}, initial)
	form.Load(ctx)

	if err := fillForm(ctx, form, req); err != nil {
		h.Error(c, err)
		return
	}
	if files := mf.File["image"]; len(files) > 0 {
		form.SetImage(upload(files[0]))
	}
	for _, key := range []string{"attachments", "attachments[]"} {
		for _, fh := range mf.File[key] {
			form.AddAttachment(upload(fh))
		}
	}

	logger.Debug(ctx, "submitting asset form", "asset_id", req.AssetID, "attachments", form.PendingAttachments())
	if err := form.Submit(ctx); err != nil {
		h.Error(c, err)
		return
	}

	warnings := form.DuplicateCustomNames()
	if warnings == nil {
		warnings = []string{}
	}
	status := http.StatusCreated
	if existing != nil {
		status = http.StatusOK
	}
	c.JSON(status, dto.AssetFormResponse{Asset: saved, Warnings: warnings})
}

// fillForm applies the submitted values in the order a user would: the
// category first so its template is bound before specification values.
func fillForm(ctx context.Context, form *assetform.Form, req dto.AssetFormData) error {
	if cid, ok := req.Fields[assetform.KeyCategoryID].(string); ok && cid != "" {
		form.SelectCategory(ctx, cid)
	}
	for name, v := range req.Fields {
		if name == assetform.KeyCategoryID {
			continue
		}
		_, checkbox := v.(bool)
		if err := form.SetField(name, v, checkbox); err != nil {
			return apperror.NewValidation(err.Error()).WithDetail("field", name)
		}
	}
	for specID, v := range req.Specifications {
		form.SetSpecField(specID, v)
	}
	if req.CustomFields != nil {
		form.ClearCustomFields()
		for i, cf := range req.CustomFields {
			form.AddCustomField()
			if err := form.EditCustomField(i, cf.Name, cf.Value); err != nil {
				return apperror.NewValidation(err.Error()).WithDetail("field", "customFields")
			}
		}
	}
	return nil
}

func upload(fh *multipart.FileHeader) *assetform.Upload {
	return &assetform.Upload{
		Name: fh.Filename,
		Size: fh.Size,
		Type: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// dropAttachments removes stored attachments by index from form data.
func dropAttachments(data map[string]any, indexes []int) {
	list, ok := data[assetform.KeyAttachments].([]any)
	if !ok || len(indexes) == 0 {
		return
	}
	kept := make([]any, 0, len(list))
	for i, v := range list {
		if !slices.Contains(indexes, i) {
			kept = append(kept, v)
		}
	}
	data[assetform.KeyAttachments] = kept
}
