package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaform/internal/schema"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }
func (s stubAdapter) ConvertField(*schema.FormFieldSchema) FieldConversion {
	return FieldConversion{FullyConverted: true}
}
func (s stubAdapter) ConvertForm(*schema.FormViewSchema) FormConversion {
	return FormConversion{}
}

func TestRegistry_Resolve(t *testing.T) {
	r := DefaultRegistry()

	a, err := r.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, EngineFormly, a.Name(), "nil spec selects the built-in adapter")

	a, err = r.Resolve(&schema.EngineSpec{Name: EngineFormly})
	require.NoError(t, err)
	assert.Equal(t, EngineFormly, a.Name())

	a, err = r.Resolve(&schema.EngineSpec{Name: "jsonforms", Fallback: EngineFormly})
	require.NoError(t, err)
	assert.Equal(t, EngineFormly, a.Name(), "unknown engine falls back")

	_, err = r.Resolve(&schema.EngineSpec{Name: "jsonforms"})
	require.Error(t, err)

	_, err = r.Resolve(&schema.EngineSpec{Name: "jsonforms", Fallback: "also-missing"})
	require.Error(t, err)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{name: "custom"})
	r.Register(NewFormlyAdapter())

	replacement := stubAdapter{name: EngineFormly}
	r.Register(replacement)

	a, ok := r.Get(EngineFormly)
	require.True(t, ok)
	assert.Equal(t, replacement, a)

	assert.Equal(t, []string{"custom", EngineFormly}, r.Names())
}
