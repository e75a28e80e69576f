package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func linear() *Definition {
	return &Definition{
		Name:            "linear",
		Source:          "def f(x, a=1, b=0): return a*x + b",
		InputSignature:  NewSignature("x", TypeFloat, "a", TypeFloat, "b", TypeFloat),
		OutputSignature: NewSignature(ReturnKey, TypeFloat),
		Parameters: []Parameter{
			{Name: "a", Type: TypeFloat, Default: floatPtr(1)},
			{Name: "b", Type: TypeFloat, Default: floatPtr(0)},
		},
	}
}

func TestSignature_JSONKeepsKeyOrder(t *testing.T) {
	var sig Signature
	err := json.Unmarshal([]byte(`{"z": "float", "a": "any", "m": "float"}`), &sig)
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, sig.Names())

	out, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"float","a":"any","m":"float"}`, string(out))
}

func TestSignature_UnmarshalEdgeCases(t *testing.T) {
	t.Run("null is empty", func(t *testing.T) {
		var sig Signature
		require.NoError(t, json.Unmarshal([]byte(`null`), &sig))
		assert.Equal(t, 0, sig.Len())
	})

	t.Run("duplicate keys are rejected", func(t *testing.T) {
		var sig Signature
		err := json.Unmarshal([]byte(`{"x": "float", "x": "any"}`), &sig)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than once")
	})

	t.Run("non-object is rejected", func(t *testing.T) {
		var sig Signature
		require.Error(t, json.Unmarshal([]byte(`["x"]`), &sig))
	})

	t.Run("non-string type is rejected", func(t *testing.T) {
		var sig Signature
		require.Error(t, json.Unmarshal([]byte(`{"x": 1}`), &sig))
	})
}

func TestSignature_SetUpdatesInPlace(t *testing.T) {
	sig := NewSignature("x", TypeFloat, "a", TypeFloat)
	sig.Set("x", TypeAny)

	typ, ok := sig.Get("x")
	require.True(t, ok)
	assert.Equal(t, TypeAny, typ)
	assert.Equal(t, []string{"x", "a"}, sig.Names())
}

func TestDefinition_CloneIsDeep(t *testing.T) {
	def := linear()
	cp := def.Clone()

	*cp.Parameters[0].Default = 42
	cp.InputSignature.Set("x", TypeAny)
	cp.Parameters[1].Name = "changed"

	assert.Equal(t, 1.0, *def.Parameters[0].Default)
	typ, _ := def.InputSignature.Get("x")
	assert.Equal(t, TypeFloat, typ)
	assert.Equal(t, "b", def.Parameters[1].Name)
}

func TestDefinition_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(d *Definition)
		wantErr string
	}{
		{name: "valid", mutate: func(d *Definition) {}},
		{
			name:    "empty name",
			mutate:  func(d *Definition) { d.Name = "  " },
			wantErr: "name must not be empty",
		},
		{
			name:    "count mismatch",
			mutate:  func(d *Definition) { d.Parameters = d.Parameters[:1] },
			wantErr: "expected 2",
		},
		{
			name: "parameter missing from signature",
			mutate: func(d *Definition) {
				d.Parameters[1].Name = "c"
			},
			wantErr: "'c' is not declared",
		},
		{
			name: "parameter shadows independent variable",
			mutate: func(d *Definition) {
				d.Parameters[0].Name = "x"
			},
			wantErr: "shadows the independent variable",
		},
		{
			name:    "bad output signature",
			mutate:  func(d *Definition) { d.OutputSignature = NewSignature("result", TypeFloat) },
			wantErr: "exactly the key 'return'",
		},
		{
			name:    "empty parameter type",
			mutate:  func(d *Definition) { d.Parameters[0].Type = "" },
			wantErr: "'a' has an empty type",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := linear()
			tc.mutate(def)

			err := def.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDefinition))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefinition_HasFullSignature(t *testing.T) {
	def := linear()
	assert.True(t, def.HasFullSignature())

	def.Parameters = nil
	assert.False(t, def.HasFullSignature())

	bare := &Definition{Name: "bare", Source: "def f(x): return x"}
	assert.False(t, bare.HasFullSignature())
	assert.Equal(t, "", bare.Independent())
}

func TestDefinition_JSONShape(t *testing.T) {
	def := linear()
	def.Parameters[1].Default = nil

	out, err := json.Marshal(def)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"name": "linear",
		"source": "def f(x, a=1, b=0): return a*x + b",
		"description": "",
		"input_signature": {"x": "float", "a": "float", "b": "float"},
		"output_signature": {"return": "float"},
		"parameters": [
			{"name": "a", "type": "float", "default": 1},
			{"name": "b", "type": "float", "default": null}
		]
	}`, string(out))
}
