package viewstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaform/internal/schema"
)

func valid(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func TestReconcile_NilState(t *testing.T) {
	res := Reconcile(nil, valid("name"))
	require.NotNil(t, res.State)
	assert.False(t, res.WasModified)
	assert.Empty(t, res.Removed)
}

func TestReconcile_CleanStateUntouched(t *testing.T) {
	state := &ViewState{
		Browse: &BrowseState{
			Filters: []BrowseFilter{{ID: "f1", Field: "name", Operator: "eq", Value: "x"}},
			Sorts:   []BrowseSort{{Field: "name"}},
			Columns: []string{"name", "price"},
			Search:  "shoes",
			Page:    3,
		},
		Form: &FormState{
			ActiveTab: "general",
			Draft:     map[string]any{"name": "draft value"},
		},
	}

	res := Reconcile(state, valid("name", "price"))
	assert.False(t, res.WasModified)
	assert.Empty(t, res.Removed)
	assert.Equal(t, state.Browse.Filters, res.State.Browse.Filters)
	assert.Equal(t, "shoes", res.State.Browse.Search)
	assert.Equal(t, 3, res.State.Browse.Page)
	assert.Equal(t, "general", res.State.Form.ActiveTab)
	assert.Equal(t, "draft value", res.State.Form.Draft["name"])
}

func TestReconcile_DropsStaleReferences(t *testing.T) {
	state := &ViewState{
		Browse: &BrowseState{
			Filters: []BrowseFilter{
				{ID: "f1", Field: "name", Operator: "eq"},
				{ID: "f2", Field: "removed", Operator: "eq"},
			},
			Sorts:   []BrowseSort{{Field: "removed", Descending: true}},
			Columns: []string{"name", "removed"},
		},
		Form: &FormState{
			Draft: map[string]any{"name": "keep", "removed": "drop"},
		},
	}

	res := Reconcile(state, valid("name"))
	assert.True(t, res.WasModified)
	require.Len(t, res.Removed, 4)

	byType := map[string]RemovedRef{}
	for _, r := range res.Removed {
		byType[r.Type] = r
	}
	assert.Equal(t, "f2", byType["filter"].ID)
	assert.Equal(t, "removed", byType["filter"].Field)
	assert.Equal(t, "removed", byType["sort"].Field)
	assert.Equal(t, "removed", byType["column"].Field)
	assert.Equal(t, "removed", byType["draft"].Field)

	require.Len(t, res.State.Browse.Filters, 1)
	assert.Empty(t, res.State.Browse.Sorts)
	assert.Equal(t, []string{"name"}, res.State.Browse.Columns)
	assert.Equal(t, map[string]any{"name": "keep"}, res.State.Form.Draft)
}

func TestReconcile_InputNotMutated(t *testing.T) {
	state := &ViewState{
		Browse: &BrowseState{
			Filters: []BrowseFilter{{ID: "f1", Field: "gone", Operator: "eq"}},
			Columns: []string{"gone"},
		},
		Form: &FormState{Draft: map[string]any{"gone": 1}},
	}

	Reconcile(state, valid("name"))

	assert.Len(t, state.Browse.Filters, 1)
	assert.Equal(t, []string{"gone"}, state.Browse.Columns)
	assert.Contains(t, state.Form.Draft, "gone")
}

func TestReconcile_EmptySections(t *testing.T) {
	res := Reconcile(&ViewState{}, valid("name"))
	assert.Nil(t, res.State.Browse)
	assert.Nil(t, res.State.Form)
	assert.False(t, res.WasModified)
}

func TestReconcileWithSchema(t *testing.T) {
	entity := schema.NewEntitySchema("product", "Product").
		Endpoint("/api/products").
		Field(schema.Text("name")).
		Build()

	state := &ViewState{
		Browse: &BrowseState{Columns: []string{"name", "legacy"}},
	}

	res := ReconcileWithSchema(state, entity)
	assert.True(t, res.WasModified)
	assert.Equal(t, []string{"name"}, res.State.Browse.Columns)
}

func TestReconcileWithSchema_NilEntityDropsEverything(t *testing.T) {
	state := &ViewState{Browse: &BrowseState{Columns: []string{"name"}}}
	res := ReconcileWithSchema(state, nil)
	assert.True(t, res.WasModified)
	assert.Empty(t, res.State.Browse.Columns)
}
