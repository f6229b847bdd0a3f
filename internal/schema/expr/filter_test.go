package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(vals ...map[string]any) []map[string]any { return vals }

func TestFilter_Apply(t *testing.T) {
	in := items(
		map[string]any{"id": "1", "active": true, "rank": 3},
		map[string]any{"id": "2", "active": false, "rank": 1},
		map[string]any{"id": "3", "active": true, "rank": 2},
	)

	f, err := ParseFilter("active == true && rank <= 2")
	require.NoError(t, err)

	out := f.Apply(in)
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0]["id"])
	assert.Len(t, in, 3, "input must not be mutated")
}

func TestParseFilter_Empty(t *testing.T) {
	f, err := ParseFilter("  ")
	require.NoError(t, err)

	in := items(map[string]any{"id": "1"})
	assert.Equal(t, in, f.Apply(in))
}

func TestParseFilter_BadTerm(t *testing.T) {
	_, err := ParseFilter("active == true && broken")
	require.Error(t, err)
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		input   string
		field   string
		desc    bool
		wantErr bool
	}{
		{input: "name", field: "name"},
		{input: "name asc", field: "name"},
		{input: "name desc", field: "name", desc: true},
		{input: "name DESC", field: "name", desc: true},
		{input: "", wantErr: true},
		{input: "name sideways", wantErr: true},
		{input: "name asc extra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseSort(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.field, s.Field)
			assert.Equal(t, tt.desc, s.Descending)
		})
	}
}

func TestSortSpec_Apply(t *testing.T) {
	in := items(
		map[string]any{"id": "a", "rank": 10},
		map[string]any{"id": "b"},
		map[string]any{"id": "c", "rank": 2},
	)

	asc, err := ParseSort("rank asc")
	require.NoError(t, err)
	out := asc.Apply(in)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0]["id"])
	assert.Equal(t, "a", out[1]["id"])
	assert.Equal(t, "b", out[2]["id"], "missing field sorts last")

	// Numeric ordering, not lexicographic: "10" < "2" as strings.
	in2 := items(
		map[string]any{"id": "x", "rank": "10"},
		map[string]any{"id": "y", "rank": "2"},
	)
	out2 := asc.Apply(in2)
	assert.Equal(t, "y", out2[0]["id"])

	desc, err := ParseSort("rank desc")
	require.NoError(t, err)
	out3 := desc.Apply(in2)
	assert.Equal(t, "x", out3[0]["id"])

	assert.Equal(t, "a", in[0]["id"], "input order untouched")
}
