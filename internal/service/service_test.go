package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaform/internal/core/apperror"
	"metaform/internal/schema"
	"metaform/internal/schema/version"
)

// memStore is an in-memory SchemaStore with call counting.
type memStore struct {
	mu      sync.Mutex
	items   map[string]*schema.EntitySchema
	getErr  error
	saveErr error
	gets    int32
	delay   time.Duration
}

func newMemStore() *memStore {
	return &memStore{items: map[string]*schema.EntitySchema{}}
}

func (m *memStore) Get(ctx context.Context, entityID string) (*schema.EntitySchema, error) {
	atomic.AddInt32(&m.gets, 1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.items[entityID]
	if !ok {
		return nil, apperror.NewNotFound("entity schema", entityID)
	}
	return entity, nil
}

func (m *memStore) Save(ctx context.Context, entity *schema.EntitySchema) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[entity.ID] = entity
	return nil
}

func (m *memStore) getCount() int { return int(atomic.LoadInt32(&m.gets)) }

func testEntity() *schema.EntitySchema {
	return schema.NewEntitySchema("product", "Product").
		Endpoint("/api/products").
		Field(schema.Text("name").Label("Name").Required().Primary()).
		Field(schema.Text("sku").Identifier()).
		Field(schema.Date("createdAt").System()).
		Build()
}

func newTestService(store SchemaStore) *SchemaService {
	return NewSchemaService(store, nil, nil, nil, nil)
}

func TestGetSchema_CachesFetches(t *testing.T) {
	store := newMemStore()
	store.items["product"] = testEntity()
	svc := newTestService(store)

	ctx := context.Background()
	first := svc.GetSchema(ctx, "product")
	require.NotNil(t, first)
	second := svc.GetSchema(ctx, "product")
	assert.Same(t, first, second)
	assert.Equal(t, 1, store.getCount())
}

func TestGetSchema_TTLExpiry(t *testing.T) {
	store := newMemStore()
	store.items["product"] = testEntity()
	svc := newTestService(store)

	clock := time.Now()
	svc.now = func() time.Time { return clock }

	ctx := context.Background()
	svc.GetSchema(ctx, "product")
	clock = clock.Add(defaultSchemaTTL + time.Second)
	svc.GetSchema(ctx, "product")
	assert.Equal(t, 2, store.getCount())
}

func TestGetSchema_MissingReturnsNil(t *testing.T) {
	svc := newTestService(newMemStore())
	assert.Nil(t, svc.GetSchema(context.Background(), "ghost"))
}

func TestGetSchema_StoreErrorDegradesToNil(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("db down")
	svc := newTestService(store)
	assert.Nil(t, svc.GetSchema(context.Background(), "product"))
}

func TestGetSchema_ConcurrentDedup(t *testing.T) {
	store := newMemStore()
	store.items["product"] = testEntity()
	store.delay = 50 * time.Millisecond
	svc := newTestService(store)

	var wg sync.WaitGroup
	results := make([]*schema.EntitySchema, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetSchema(context.Background(), "product")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.getCount(), "concurrent fetches share one round-trip")
	for _, r := range results {
		require.NotNil(t, r)
	}
}

func TestRegisterSchema_Valid(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	got, err := svc.RegisterSchema(context.Background(), testEntity())
	require.NoError(t, err)
	assert.Equal(t, version.CurrentDSLVersion, got.DSLVersion)

	// Registration primes the cache; no store read needed.
	cached := svc.GetSchema(context.Background(), "product")
	assert.Same(t, got, cached)
	assert.Equal(t, 0, store.getCount())
}

func TestRegisterSchema_Nil(t *testing.T) {
	_, err := newTestService(newMemStore()).RegisterSchema(context.Background(), nil)
	require.Error(t, err)
}

func TestRegisterSchema_InvalidFails(t *testing.T) {
	svc := newTestService(newMemStore())
	bad := testEntity()
	bad.DataSource.Endpoint = ""

	_, err := svc.RegisterSchema(context.Background(), bad)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeSchemaValidation, appErr.Code)
}

func TestRegisterSchema_MigratesLegacyVersion(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	legacy := testEntity()
	legacy.DSLVersion = "1.1.0"
	legacy.Fields[0].VisibleWhen = &schema.ConditionalExpression{Expression: "sku != null"}

	got, err := svc.RegisterSchema(context.Background(), legacy)
	require.NoError(t, err)
	assert.Equal(t, version.CurrentDSLVersion, got.DSLVersion)
	assert.Equal(t, "1.1.0", legacy.DSLVersion, "input document untouched")

	stored, err := store.Get(context.Background(), "product")
	require.NoError(t, err)
	assert.Equal(t, version.CurrentDSLVersion, stored.DSLVersion)
}

func TestRegisterSchema_UnsupportedVersions(t *testing.T) {
	svc := newTestService(newMemStore())

	for _, dsl := range []string{"0.9.0", "2.0.0", "bogus", "1.1.5"} {
		entity := testEntity()
		entity.DSLVersion = dsl
		_, err := svc.RegisterSchema(context.Background(), entity)
		require.Error(t, err, dsl)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok, dsl)
		assert.Equal(t, apperror.CodeVersionUnsupported, appErr.Code, dsl)
	}
}

func TestRegisterSchema_StoreErrorPropagates(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	_, err := newTestService(store).RegisterSchema(context.Background(), testEntity())
	require.Error(t, err)
}

func TestGetViewSchema_GeneratedWhenNoAuthoredView(t *testing.T) {
	store := newMemStore()
	store.items["product"] = testEntity()
	svc := newTestService(store)

	view, err := svc.GetViewSchema(context.Background(), "product", schema.ModeEdit)
	require.NoError(t, err)
	assert.Equal(t, "Edit Product", view.Title)
	require.Len(t, view.Groups, 1, "generated views group system fields")
	assert.Equal(t, "system", view.Groups[0].ID)
}

func TestGetViewSchema_AuthoredViewWins(t *testing.T) {
	entity := testEntity()
	entity.Views.Edit = &schema.FormViewSchema{
		Title:  "Authored",
		Fields: []schema.FormFieldSchema{{Field: "name", Type: schema.TypeText}},
	}
	store := newMemStore()
	store.items["product"] = entity
	svc := newTestService(store)

	view, err := svc.GetViewSchema(context.Background(), "product", schema.ModeEdit)
	require.NoError(t, err)
	assert.Equal(t, "Authored", view.Title)

	detail, err := svc.GetViewSchema(context.Background(), "product", schema.ModeDetail)
	require.NoError(t, err)
	assert.True(t, detail.Fields[0].Readonly, "detail derived from authored edit")
}

func TestGetViewSchema_UnknownEntity(t *testing.T) {
	_, err := newTestService(newMemStore()).GetViewSchema(context.Background(), "ghost", schema.ModeEdit)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotFound, appErr.Code)
}

func TestGetEngineConfig(t *testing.T) {
	store := newMemStore()
	store.items["product"] = testEntity()
	svc := newTestService(store)

	conv, err := svc.GetEngineConfig(context.Background(), "product", schema.ModeEdit, "")
	require.NoError(t, err)
	require.NotNil(t, conv.Form)
	assert.NotEmpty(t, conv.Fields)

	_, err = svc.GetEngineConfig(context.Background(), "product", schema.ModeEdit, "jsonforms")
	require.Error(t, err, "unknown engine override fails")
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.items["product"] = testEntity()
	svc := newTestService(store)

	ctx := context.Background()
	svc.GetSchema(ctx, "product")
	svc.Invalidate("product")
	svc.GetSchema(ctx, "product")
	assert.Equal(t, 2, store.getCount())

	// Full flush.
	svc.Invalidate("")
	svc.GetSchema(ctx, "product")
	assert.Equal(t, 3, store.getCount())
}
