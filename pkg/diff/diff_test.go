package diff

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string {
	return &s
}

func TestCompare(t *testing.T) {
	for _, mode := range []Mode{JSON, Text} {
		engine, err := New(mode)
		require.NoError(t, err)

		for _, tc := range []struct {
			name    string
			old     *string
			new     *string
			changed bool
			diff    *string
		}{
			{
				name: "both absent",
			},
			{
				name:    "old absent",
				new:     ptr(`{"a":1}`),
				changed: true,
				diff:    ptr(`{"a":1}`),
			},
			{
				name:    "new absent",
				old:     ptr(`{"a":1}`),
				changed: true,
				diff:    ptr(`{"a":1}`),
			},
			{
				name: "byte equal",
				old:  ptr(`{"a":1}`),
				new:  ptr(`{"a":1}`),
			},
		} {
			t.Run(string(mode)+"/"+tc.name, func(t *testing.T) {
				changed, diff, err := engine.Compare(tc.old, tc.new)
				require.NoError(t, err)
				assert.Equal(t, tc.changed, changed)
				assert.Equal(t, tc.diff, diff)
			})
		}
	}
}

func TestCompareJSON(t *testing.T) {
	engine, err := New(JSON)
	require.NoError(t, err)

	for _, tc := range []struct {
		name    string
		old     string
		new     string
		changed bool
		patch   string
	}{
		{
			name: "reordered keys",
			old:  `{"a":1,"b":{"c":[1,2]}}`,
			new:  `{"b":{"c":[1,2]},"a":1}`,
		},
		{
			name: "whitespace only",
			old:  `{"a":1}`,
			new:  "{\n  \"a\": 1\n}",
		},
		{
			name:    "replaced value",
			old:     `{"properties":{"state":"Enabled"}}`,
			new:     `{"properties":{"state":"Disabled"}}`,
			changed: true,
			patch:   `[{"op":"replace","path":"/properties/state","value":"Disabled"}]`,
		},
		{
			name:    "added member",
			old:     `{"a":1}`,
			new:     `{"a":1,"b":2}`,
			changed: true,
			patch:   `[{"op":"add","path":"/b","value":2}]`,
		},
		{
			name:    "removed member",
			old:     `{"a":1,"b":2}`,
			new:     `{"a":1}`,
			changed: true,
			patch:   `[{"op":"remove","path":"/b"}]`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			changed, diff, err := engine.Compare(&tc.old, &tc.new)
			require.NoError(t, err)
			assert.Equal(t, tc.changed, changed)

			if tc.changed {
				require.NotNil(t, diff)
				assert.JSONEq(t, tc.patch, *diff)
			} else {
				assert.Nil(t, diff)
			}
		})
	}
}

func TestCompareJSONDeterministic(t *testing.T) {
	engine, err := New(JSON)
	require.NoError(t, err)

	old := `{"a":1,"b":2,"c":{"d":[1,2,3]},"e":"x"}`
	new := `{"a":2,"c":{"d":[1,3]},"e":"y","f":true}`

	_, first, err := engine.Compare(&old, &new)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, diff, err := engine.Compare(&old, &new)
		require.NoError(t, err)
		assert.Equal(t, *first, *diff)
	}
}

func TestCompareJSONInvalid(t *testing.T) {
	engine, err := New(JSON)
	require.NoError(t, err)

	old := `{"a":1}`
	new := `<html>oops</html>`

	changed, diff, err := engine.Compare(&old, &new)
	assert.False(t, changed)
	assert.Nil(t, diff)

	var computationErr *ComputationError
	assert.True(t, errors.As(err, &computationErr))
	assert.Equal(t, JSON, computationErr.Mode)
}

func TestCompareText(t *testing.T) {
	engine, err := New(Text)
	require.NoError(t, err)

	old := "line one\nline two\n"
	new := "line one\nline 2\n"

	changed, diff, err := engine.Compare(&old, &new)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, diff)
	assert.Contains(t, *diff, "@@")
}

func TestNewUnsupported(t *testing.T) {
	_, err := New("xml")
	assert.ErrorContains(t, err, "unsupported diff mode")
}
