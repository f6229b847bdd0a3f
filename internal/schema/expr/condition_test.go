package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		field   string
		op      Op
		wantErr bool
	}{
		{name: "equals string", input: "status == 'active'", field: "status", op: OpEq},
		{name: "not equals null", input: "category != null", field: "category", op: OpNe},
		{name: "greater or equal", input: "qty >= 10", field: "qty", op: OpGe},
		{name: "less than", input: "price < 99.5", field: "price", op: OpLt},
		{name: "bool literal", input: "onSale == true", field: "onSale", op: OpEq},
		{name: "empty", input: "", wantErr: true},
		{name: "no operator", input: "status", wantErr: true},
		{name: "bad operator", input: "status ~ 'x'", wantErr: true},
		{name: "missing value", input: "status ==", wantErr: true},
		{name: "unterminated string", input: "status == 'act", wantErr: true},
		{name: "ordering on null", input: "category > null", wantErr: true},
		{name: "ordering on bool", input: "onSale >= true", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := ParseCondition(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.field, cond.Field)
			assert.Equal(t, tt.op, cond.Op)
		})
	}
}

func TestParseCondition_GeNotReadAsGt(t *testing.T) {
	cond, err := ParseCondition("qty >= 3")
	require.NoError(t, err)
	assert.Equal(t, OpGe, cond.Op)
	assert.Equal(t, "3", cond.Value.Num.String())
}

func TestCondition_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		values map[string]any
		want   bool
	}{
		{"string equal", "status == 'active'", map[string]any{"status": "active"}, true},
		{"string not equal", "status != 'active'", map[string]any{"status": "draft"}, true},
		{"missing field is null", "category == null", map[string]any{}, true},
		{"present field not null", "category != null", map[string]any{"category": "5"}, true},
		{"explicit nil is null", "category == null", map[string]any{"category": nil}, true},
		{"bool match", "onSale == true", map[string]any{"onSale": true}, true},
		{"bool mismatch", "onSale == true", map[string]any{"onSale": false}, false},
		{"non-bool against bool", "onSale == true", map[string]any{"onSale": "yes"}, false},
		{"number int", "qty > 5", map[string]any{"qty": 6}, true},
		{"number float", "price <= 10", map[string]any{"price": 10.0}, true},
		// Form inputs deliver numbers as strings.
		{"numeric string coerces", "qty >= 10", map[string]any{"qty": "10"}, true},
		{"numeric string decimal", "price < 9.99", map[string]any{"price": "9.50"}, true},
		{"non-numeric string vs number eq", "qty == 5", map[string]any{"qty": "abc"}, false},
		{"non-numeric string vs number ne", "qty != 5", map[string]any{"qty": "abc"}, true},
		{"string ordering", "code >= 'b'", map[string]any{"code": "c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateCondition(tt.input, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_ParseError(t *testing.T) {
	_, err := EvaluateCondition("nonsense", nil)
	require.Error(t, err)
}
