package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaform/internal/infrastructure/storage/kv"
	"metaform/internal/schema"
)

func mruEntity(limit int) *schema.EntitySchema {
	return schema.NewEntitySchema("product", "Product").
		Endpoint("/api/products").
		Field(schema.Text("name")).
		Features(schema.EntityFeatures{EnableMru: true, MruLimit: limit}).
		Build()
}

func TestMRUTracker_TouchAndList(t *testing.T) {
	tracker := NewMRUTracker(kv.NewMemory())
	ctx := context.Background()
	entity := mruEntity(0)

	tracker.Touch(ctx, "u1", entity, "r1", "First")
	tracker.Touch(ctx, "u1", entity, "r2", "Second")

	entries := tracker.List("u1", "product")
	require.Len(t, entries, 2)
	assert.Equal(t, "r2", entries[0].RecordID, "newest first")
	assert.Equal(t, "First", entries[1].Label)
	assert.False(t, entries[0].TouchedAt.IsZero())
}

func TestMRUTracker_TouchMovesToFront(t *testing.T) {
	tracker := NewMRUTracker(kv.NewMemory())
	ctx := context.Background()
	entity := mruEntity(0)

	tracker.Touch(ctx, "u1", entity, "r1", "")
	tracker.Touch(ctx, "u1", entity, "r2", "")
	tracker.Touch(ctx, "u1", entity, "r1", "")

	entries := tracker.List("u1", "product")
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0].RecordID)
	assert.Equal(t, "r2", entries[1].RecordID)
}

func TestMRUTracker_TruncatesToLimit(t *testing.T) {
	tracker := NewMRUTracker(kv.NewMemory())
	ctx := context.Background()
	entity := mruEntity(3)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		tracker.Touch(ctx, "u1", entity, id, "")
	}

	entries := tracker.List("u1", "product")
	require.Len(t, entries, 3)
	assert.Equal(t, "e", entries[0].RecordID)
	assert.Equal(t, "c", entries[2].RecordID)
}

func TestMRUTracker_DisabledFeatureIgnored(t *testing.T) {
	tracker := NewMRUTracker(kv.NewMemory())
	entity := schema.NewEntitySchema("customer", "Customer").
		Endpoint("/api/customers").
		Field(schema.Text("name")).
		Build()

	tracker.Touch(context.Background(), "u1", entity, "r1", "")
	assert.Empty(t, tracker.List("u1", "customer"))

	tracker.Touch(context.Background(), "u1", nil, "r1", "")
	tracker.Touch(context.Background(), "u1", mruEntity(0), "", "no record id")
	assert.Empty(t, tracker.List("u1", "product"))
}

func TestMRUTracker_ScopedPerUserAndEntity(t *testing.T) {
	tracker := NewMRUTracker(kv.NewMemory())
	ctx := context.Background()
	entity := mruEntity(0)

	tracker.Touch(ctx, "u1", entity, "r1", "")
	tracker.Touch(ctx, "u2", entity, "r2", "")

	require.Len(t, tracker.List("u1", "product"), 1)
	assert.Equal(t, "r1", tracker.List("u1", "product")[0].RecordID)
	assert.Equal(t, "r2", tracker.List("u2", "product")[0].RecordID)
	assert.Empty(t, tracker.List("u1", "customer"))
}

func TestMRUTracker_CorruptDataReadsEmpty(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.SetItem("mru:u1:product", "{not json"))

	tracker := NewMRUTracker(store)
	assert.Empty(t, tracker.List("u1", "product"))
}
