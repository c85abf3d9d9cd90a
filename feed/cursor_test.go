package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_GetHas(t *testing.T) {
	var nilCursor Cursor
	assert.Equal(t, NodeCursor{Page: 1, After: nil}, nilCursor.Get("x"))
	assert.False(t, nilCursor.Has("x"))

	c := Cursor{"a": {Page: 3, After: "tok"}}
	assert.Equal(t, NodeCursor{Page: 3, After: "tok"}, c.Get("a"))
	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("b"))
	assert.Equal(t, NodeCursor{Page: 1, After: nil}, c.Get("b"))
}

func TestCursor_Merge(t *testing.T) {
	base := Cursor{"a": {Page: 1}, "b": {Page: 2}}
	overlay := Cursor{"b": {Page: 5}, "c": {Page: 9}}

	merged := base.Merge(overlay)

	assert.Equal(t, NodeCursor{Page: 1}, merged.Get("a"))
	assert.Equal(t, NodeCursor{Page: 5}, merged.Get("b"))
	assert.Equal(t, NodeCursor{Page: 9}, merged.Get("c"))
	// base must be untouched
	assert.Equal(t, NodeCursor{Page: 2}, base.Get("b"))
}

func TestCursor_JSONRoundTrip(t *testing.T) {
	c := Cursor{"sub1": {Page: 2, After: "xyz"}}

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"sub1":{"page":2,"after":"xyz"}}}`, string(b))

	var decoded Cursor
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, c, decoded)
}

func TestEncodeDecodeCursor(t *testing.T) {
	c := Cursor{"sub1": {Page: 4, After: nil}}

	encoded, err := EncodeCursor(c)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestDecodeCursor_AcceptsNilAndObjectAndBytes(t *testing.T) {
	decoded, err := DecodeCursor(nil)
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, decoded)

	obj := map[string]any{"data": map[string]any{"sub1": map[string]any{"page": float64(2), "after": nil}}}
	decoded, err = DecodeCursor(obj)
	require.NoError(t, err)
	assert.Equal(t, NodeCursor{Page: 2, After: nil}, decoded.Get("sub1"))

	raw := []byte(`{"data":{"sub1":{"page":3,"after":null}}}`)
	decoded, err = DecodeCursor(raw)
	require.NoError(t, err)
	assert.Equal(t, NodeCursor{Page: 3, After: nil}, decoded.Get("sub1"))

	_, err = DecodeCursor(42)
	assert.Error(t, err)
}
