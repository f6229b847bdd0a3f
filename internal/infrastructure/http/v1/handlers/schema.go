package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"metaform/internal/core/apperror"
	"metaform/internal/infrastructure/http/v1/dto"
	"metaform/internal/infrastructure/storage/postgres"
	"metaform/internal/infrastructure/storage/postgres/schema_repo"
	"metaform/internal/options"
	"metaform/internal/schema"
	"metaform/internal/service"
	"metaform/internal/viewstate"
	"metaform/pkg/logger"
)

// SchemaCatalog is the listing/deletion surface of the schema store.
type SchemaCatalog interface {
	List(ctx context.Context) ([]schema_repo.ListEntry, error)
	Delete(ctx context.Context, entityID string) error
}

// SchemaAuditLog keeps the history of schema catalog changes.
type SchemaAuditLog interface {
	Log(ctx context.Context, action postgres.AuditAction, entityType, dslVersion string, doc []byte) error
	History(ctx context.Context, entityType string, limit int) ([]postgres.AuditEntry, error)
}

// SchemaHandler serves entity schemas, derived views, engine configs,
// option loads, view-state reconciliation and MRU lists.
type SchemaHandler struct {
	*BaseHandler
	service *service.SchemaService
	catalog SchemaCatalog
	loader  *options.Loader
	mru     *service.MRUTracker
	audit   SchemaAuditLog // optional
}

func NewSchemaHandler(base *BaseHandler, svc *service.SchemaService, catalog SchemaCatalog, loader *options.Loader, mru *service.MRUTracker, audit SchemaAuditLog) *SchemaHandler {
	return &SchemaHandler{
		BaseHandler: base,
		service:     svc,
		catalog:     catalog,
		loader:      loader,
		mru:         mru,
		audit:       audit,
	}
}

// recordAudit appends a catalog change entry. Best-effort: an audit
// failure never fails the request.
func (h *SchemaHandler) recordAudit(c *gin.Context, action postgres.AuditAction, entityType, dslVersion string, doc []byte) {
	if h.audit == nil {
		return
	}
	ctx := c.Request.Context()
	if err := h.audit.Log(ctx, action, entityType, dslVersion, doc); err != nil {
		logger.Warn(ctx, "schema audit write failed",
			"entityType", entityType,
			"action", string(action),
			"error", err,
		)
	}
}

// List handles GET /schema/entities.
func (h *SchemaHandler) List(c *gin.Context) {
	entries, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse[schema_repo.ListEntry]{Items: entries, Total: len(entries)})
}

// Get handles GET /schema/entities/:entityType.
func (h *SchemaHandler) Get(c *gin.Context) {
	entityType := c.Param("entityType")
	entity := h.service.GetSchema(c.Request.Context(), entityType)
	if entity == nil {
		h.Error(c, apperror.NewNotFound("entity schema", entityType))
		return
	}
	h.OK(c, entity)
}

// Register handles PUT /schema/entities. The body is a full schema document;
// legacy DSL versions are migrated before validation.
func (h *SchemaHandler) Register(c *gin.Context) {
	var entity schema.EntitySchema
	if !h.BindJSON(c, &entity) {
		return
	}

	registered, err := h.service.RegisterSchema(c.Request.Context(), &entity)
	if err != nil {
		h.Error(c, err)
		return
	}

	action := postgres.AuditActionRegister
	if entity.DSLVersion != "" && entity.DSLVersion != registered.DSLVersion {
		action = postgres.AuditActionMigrate
	}
	if doc, err := schema.SerializeEntitySchema(registered); err == nil {
		h.recordAudit(c, action, registered.ID, registered.DSLVersion, doc)
	}

	h.OK(c, registered)
}

// History handles GET /schema/entities/:entityType/audit. Returns the
// most recent catalog changes, newest first.
func (h *SchemaHandler) History(c *gin.Context) {
	if h.audit == nil {
		h.OK(c, dto.ListResponse[postgres.AuditEntry]{})
		return
	}
	limit := h.ParseIntQuery(c, "limit", 50)
	entries, err := h.audit.History(c.Request.Context(), c.Param("entityType"), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse[postgres.AuditEntry]{Items: entries, Total: len(entries)})
}

// Validate handles POST /schema/validate. Always 200: the validation result
// itself reports success or failure.
func (h *SchemaHandler) Validate(c *gin.Context) {
	var entity schema.EntitySchema
	if !h.BindJSON(c, &entity) {
		return
	}
	h.OK(c, schema.NewValidator().ValidateEntitySchema(&entity))
}

// Delete handles DELETE /schema/entities/:entityType.
func (h *SchemaHandler) Delete(c *gin.Context) {
	entityType := c.Param("entityType")
	if err := h.catalog.Delete(c.Request.Context(), entityType); err != nil {
		h.Error(c, err)
		return
	}
	h.service.Invalidate(entityType)
	h.recordAudit(c, postgres.AuditActionDelete, entityType, "", nil)
	h.NoContent(c)
}

// View handles GET /schema/entities/:entityType/views/:mode.
func (h *SchemaHandler) View(c *gin.Context) {
	entityType := c.Param("entityType")
	mode := schema.FormMode(c.Param("mode"))
	if !schema.IsValidFormMode(mode) {
		h.Error(c, apperror.NewValidation("unknown form mode").WithDetail("mode", string(mode)))
		return
	}

	view, err := h.service.GetViewSchema(c.Request.Context(), entityType, mode)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, view)
}

// EngineConfig handles GET /schema/entities/:entityType/engine-config/:mode.
// The optional ?engine= query overrides the view's own engine spec.
func (h *SchemaHandler) EngineConfig(c *gin.Context) {
	entityType := c.Param("entityType")
	mode := schema.FormMode(c.Param("mode"))
	if !schema.IsValidFormMode(mode) {
		h.Error(c, apperror.NewValidation("unknown form mode").WithDetail("mode", string(mode)))
		return
	}

	conversion, err := h.service.GetEngineConfig(c.Request.Context(), entityType, mode, c.Query("engine"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, conversion)
}

// FieldOptions handles POST /schema/entities/:entityType/fields/:field/options.
// The body carries the current form values; loading degrades to an empty
// list on any upstream failure.
func (h *SchemaHandler) FieldOptions(c *gin.Context) {
	ctx := c.Request.Context()
	entityType := c.Param("entityType")
	fieldName := c.Param("field")

	entity := h.service.GetSchema(ctx, entityType)
	if entity == nil {
		h.Error(c, apperror.NewNotFound("entity schema", entityType))
		return
	}
	field, ok := entity.FieldByName(fieldName)
	if !ok {
		h.Error(c, apperror.NewNotFound("field", fieldName))
		return
	}

	var req dto.OptionsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	source := field.OptionsSource
	if source == nil && field.LookupRef != "" {
		if lookup, found := entity.LookupByID(field.LookupRef); found {
			source = &lookup.Source
		}
	}

	opts := h.loader.Load(ctx, source, options.LoadContext{
		EntityType: entityType,
		FormValues: req.Values,
		RecordID:   req.RecordID,
	})
	h.OK(c, dto.ListResponse[schema.FieldOption]{Items: opts, Total: len(opts)})
}

// ReconcileViewState handles POST /schema/entities/:entityType/viewstate/reconcile.
func (h *SchemaHandler) ReconcileViewState(c *gin.Context) {
	ctx := c.Request.Context()
	entityType := c.Param("entityType")

	entity := h.service.GetSchema(ctx, entityType)
	if entity == nil {
		h.Error(c, apperror.NewNotFound("entity schema", entityType))
		return
	}

	var state viewstate.ViewState
	if !h.BindJSON(c, &state) {
		return
	}
	h.OK(c, viewstate.ReconcileWithSchema(&state, entity))
}

// ListMRU handles GET /schema/entities/:entityType/mru.
func (h *SchemaHandler) ListMRU(c *gin.Context) {
	entries := h.mru.List(h.GetUserID(c), c.Param("entityType"))
	h.OK(c, dto.ListResponse[service.MRUEntry]{Items: entries, Total: len(entries)})
}

// TouchMRU handles POST /schema/entities/:entityType/mru.
func (h *SchemaHandler) TouchMRU(c *gin.Context) {
	ctx := c.Request.Context()
	entityType := c.Param("entityType")

	entity := h.service.GetSchema(ctx, entityType)
	if entity == nil {
		h.Error(c, apperror.NewNotFound("entity schema", entityType))
		return
	}

	var req dto.TouchMRURequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.mru.Touch(ctx, h.GetUserID(c), entity, req.RecordID, req.Label)
	h.Success(c, "recorded")
}
