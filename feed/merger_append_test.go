package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMergerAppend(t *testing.T) {
	raw := []byte(`{
		"type": "merger_append",
		"merger_id": "m1",
		"items": [
			{"type": "subfeed", "subfeed_id": "a", "method_name": "fa"},
			{"type": "subfeed", "subfeed_id": "b", "method_name": "fb"}
		]
	}`)
	node, err := parseMergerAppend(raw)
	require.NoError(t, err)
	m := node.(*MergerAppend)
	assert.Equal(t, "m1", m.ID())
	assert.Len(t, m.Items, 2)
}

func TestParseMergerAppend_RequiresItems(t *testing.T) {
	_, err := parseMergerAppend([]byte(`{"type":"merger_append","merger_id":"m1","items":[]}`))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestMergerAppend_GetData_ShrinkingLimit(t *testing.T) {
	fetchers := Fetchers{
		"fa": {Fn: fixedFetcher("a", 3)},
		"fb": {Fn: fixedFetcher("b", 10)},
	}
	m := &MergerAppend{
		MergerID: "m1",
		Items:    []Node{newSubFeed("a", "fa"), newSubFeed("b", "fb")},
	}

	result, err := m.GetData(context.Background(), fetchers, "u", 5, Cursor{}, nil, nil)
	require.NoError(t, err)

	// "a" only has 3 items; "b" fills the remaining 2 of the limit-5 budget.
	require.Len(t, result.Data, 5)
	assert.Equal(t, map[string]any{"id": "a-0"}, result.Data[0])
	assert.Equal(t, map[string]any{"id": "a-2"}, result.Data[2])
	assert.Equal(t, map[string]any{"id": "b-0"}, result.Data[3])
	assert.Equal(t, map[string]any{"id": "b-1"}, result.Data[4])
	assert.True(t, result.HasNextPage) // "b" still has more
}

func TestMergerAppend_GetData_StopsWhenLimitFilled(t *testing.T) {
	fetchers := Fetchers{
		"fa": {Fn: fixedFetcher("a", 10)},
		"fb": {Fn: fixedFetcher("b", 10)},
	}
	m := &MergerAppend{
		MergerID: "m1",
		Items:    []Node{newSubFeed("a", "fa"), newSubFeed("b", "fb")},
	}

	result, err := m.GetData(context.Background(), fetchers, "u", 3, Cursor{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 3)
	// "b" was never called because "a" alone filled the limit.
	assert.False(t, result.NextPage.Has("b"))
}

func TestMergerAppend_GetData_Shuffle(t *testing.T) {
	fetchers := Fetchers{"fa": {Fn: fixedFetcher("a", 3)}}
	m := &MergerAppend{
		MergerID: "m1",
		Items:    []Node{newSubFeed("a", "fa")},
		Shuffle:  true,
		shuffler: reverseShuffler{},
	}

	result, err := m.GetData(context.Background(), fetchers, "u", 3, Cursor{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "a-2"}, result.Data[0])
}
