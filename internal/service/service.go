// Package service is the application layer over schemas: it caches schema
// fetches, deduplicates concurrent loads, runs version checks and validation
// on registration, and produces per-mode view schemas and engine
// configurations.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"metaform/internal/core/apperror"
	"metaform/internal/engine"
	"metaform/internal/generator"
	"metaform/internal/options"
	"metaform/internal/schema"
	"metaform/internal/schema/version"
	"metaform/pkg/logger"
)

// SchemaStore is the persistence surface the service needs.
type SchemaStore interface {
	Get(ctx context.Context, entityID string) (*schema.EntitySchema, error)
	Save(ctx context.Context, entity *schema.EntitySchema) error
}

const defaultSchemaTTL = 10 * time.Minute

type cachedSchema struct {
	entity  *schema.EntitySchema
	expires time.Time
}

type pendingFetch struct {
	done   chan struct{}
	entity *schema.EntitySchema
}

// SchemaService loads, registers and serves entity schemas.
type SchemaService struct {
	store    SchemaStore
	validate *schema.Validator
	versions *version.Registry
	engines  *engine.Registry
	loader   *options.Loader
	ttl      time.Duration

	mu      sync.Mutex
	cache   map[string]cachedSchema
	pending map[string]*pendingFetch
	now     func() time.Time
}

func NewSchemaService(store SchemaStore, validator *schema.Validator, versions *version.Registry, engines *engine.Registry, loader *options.Loader) *SchemaService {
	if validator == nil {
		validator = schema.NewValidator()
	}
	if versions == nil {
		versions = version.DefaultRegistry()
	}
	if engines == nil {
		engines = engine.DefaultRegistry()
	}
	return &SchemaService{
		store:    store,
		validate: validator,
		versions: versions,
		engines:  engines,
		loader:   loader,
		ttl:      defaultSchemaTTL,
		cache:    make(map[string]cachedSchema),
		pending:  make(map[string]*pendingFetch),
		now:      time.Now,
	}
}

// GetSchema returns the entity schema, from cache when fresh. Concurrent
// fetches of the same entity share one store round-trip. A failed fetch is
// logged and returns nil, so callers render a "schema unavailable" state
// rather than crash.
func (s *SchemaService) GetSchema(ctx context.Context, entityType string) *schema.EntitySchema {
	s.mu.Lock()
	if entry, ok := s.cache[entityType]; ok && s.now().Before(entry.expires) {
		s.mu.Unlock()
		return entry.entity
	}
	if pending, ok := s.pending[entityType]; ok {
		s.mu.Unlock()
		select {
		case <-pending.done:
			return pending.entity
		case <-ctx.Done():
			return nil
		}
	}
	pending := &pendingFetch{done: make(chan struct{})}
	s.pending[entityType] = pending
	s.mu.Unlock()

	// Shared by every waiter; must outlive the first caller.
	fetchCtx := context.WithoutCancel(ctx)
	entity, err := s.store.Get(fetchCtx, entityType)
	if err != nil {
		logger.Error(ctx, "schema fetch failed", "entityType", entityType, "error", err)
		entity = nil
	}

	s.mu.Lock()
	if entity != nil {
		s.cache[entityType] = cachedSchema{entity: entity, expires: s.now().Add(s.ttl)}
	}
	pending.entity = entity
	delete(s.pending, entityType)
	s.mu.Unlock()
	close(pending.done)

	if entity != nil && s.loader != nil {
		s.warmLookups(fetchCtx, entity)
	}
	return entity
}

// warmLookups primes the options cache for lookups flagged preload.
func (s *SchemaService) warmLookups(ctx context.Context, entity *schema.EntitySchema) {
	for _, lookup := range entity.PreloadLookups() {
		source := lookup.Source
		go s.loader.Load(ctx, &source, options.LoadContext{EntityType: entity.ID})
	}
}

// RegisterSchema validates and persists a schema, migrating legacy DSL
// versions first. The stored and cached document is always current-version.
func (s *SchemaService) RegisterSchema(ctx context.Context, entity *schema.EntitySchema) (*schema.EntitySchema, error) {
	if entity == nil {
		return nil, apperror.NewValidation("schema is required")
	}

	migrated, err := s.migrateIfNeeded(entity)
	if err != nil {
		return nil, err
	}

	result := s.validate.ValidateEntitySchema(migrated)
	if !result.Success {
		return nil, apperror.NewSchemaValidation(migrated.ID, result.Errors)
	}
	for _, warning := range result.Warnings {
		logger.Warn(ctx, "schema warning", "entityType", migrated.ID, "path", warning.Path, "warning", warning.Message)
	}

	if err := s.store.Save(ctx, migrated); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[migrated.ID] = cachedSchema{entity: migrated, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()

	logger.Info(ctx, "schema registered", "entityType", migrated.ID, "dslVersion", migrated.DSLVersion)
	return migrated, nil
}

func (s *SchemaService) migrateIfNeeded(entity *schema.EntitySchema) (*schema.EntitySchema, error) {
	check := version.CheckVersion(entity.DSLVersion)
	if !check.IsValid {
		return nil, apperror.NewVersionUnsupported(entity.DSLVersion, version.MinSupportedVersion)
	}
	if !check.NeedsMigration {
		return entity, nil
	}
	if !check.CanMigrate {
		return nil, apperror.NewVersionUnsupported(entity.DSLVersion, version.MinSupportedVersion)
	}

	raw, err := schema.SerializeEntitySchema(entity)
	if err != nil {
		return nil, apperror.NewMigrationFailed(entity.DSLVersion, err)
	}
	var doc version.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperror.NewMigrationFailed(entity.DSLVersion, err)
	}
	doc, err = s.versions.Migrate(doc, entity.DSLVersion)
	if err != nil {
		return nil, apperror.NewMigrationFailed(entity.DSLVersion, err)
	}
	upgraded, err := json.Marshal(doc)
	if err != nil {
		return nil, apperror.NewMigrationFailed(entity.DSLVersion, err)
	}
	migrated, err := schema.ParseEntitySchema(upgraded)
	if err != nil {
		return nil, apperror.NewMigrationFailed(entity.DSLVersion, err)
	}
	return migrated, nil
}

// GetViewSchema returns the mode view of an entity: the authored view when
// one exists (other modes derived from edit), otherwise a generated view
// from the master field list.
func (s *SchemaService) GetViewSchema(ctx context.Context, entityType string, mode schema.FormMode) (*schema.FormViewSchema, error) {
	entity := s.GetSchema(ctx, entityType)
	if entity == nil {
		return nil, apperror.NewNotFound("entity schema", entityType)
	}

	if entity.Views.Edit != nil {
		view, err := schema.GetSchemaForMode(entity.Views, mode)
		if err != nil {
			return nil, apperror.NewValidation(err.Error())
		}
		return view, nil
	}

	view, err := generator.GenerateFormSchema(entity, generator.Options{
		Mode:              mode,
		GroupSystemFields: true,
	})
	if err != nil {
		return nil, apperror.NewValidation(err.Error())
	}
	return view, nil
}

// GetEngineConfig converts a mode view into the named engine's native form
// configuration. An empty engine name resolves the view's own engine spec.
func (s *SchemaService) GetEngineConfig(ctx context.Context, entityType string, mode schema.FormMode, engineName string) (*engine.FormConversion, error) {
	view, err := s.GetViewSchema(ctx, entityType, mode)
	if err != nil {
		return nil, err
	}

	spec := view.Engine
	if engineName != "" {
		spec = &schema.EngineSpec{Name: engineName}
	}
	adapter, err := s.engines.Resolve(spec)
	if err != nil {
		return nil, apperror.NewValidation(err.Error())
	}

	conversion := adapter.ConvertForm(view)
	for _, warning := range conversion.Warnings {
		logger.Warn(ctx, "engine conversion warning", "entityType", entityType, "engine", adapter.Name(), "warning", warning)
	}
	return &conversion, nil
}

// Invalidate drops an entity's cached schema and its entity-scoped option
// caches. An empty entityType clears everything.
func (s *SchemaService) Invalidate(entityType string) {
	s.mu.Lock()
	if entityType == "" {
		s.cache = make(map[string]cachedSchema)
	} else {
		delete(s.cache, entityType)
	}
	s.mu.Unlock()

	if s.loader != nil {
		prefix := ""
		if entityType != "" {
			prefix = fmt.Sprintf("entity:%s|", entityType)
		}
		s.loader.Invalidate(prefix)
	}
}
