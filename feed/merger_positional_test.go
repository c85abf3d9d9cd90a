package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMergerPositional_Validations(t *testing.T) {
	base := func(extra string) []byte {
		return []byte(`{
			"type": "merger_positional",
			"merger_id": "m1",
			"positional": {"type":"subfeed","subfeed_id":"p","method_name":"fp"},
			"default": {"type":"subfeed","subfeed_id":"d","method_name":"fd"}` + extra + `
		}`)
	}

	_, err := parseMergerPositional(base(""))
	assert.ErrorIs(t, err, ErrConfigInvalid, "requires positions or start/end/step")

	_, err = parseMergerPositional(base(`,"positions":[1,3,5]`))
	assert.NoError(t, err)

	_, err = parseMergerPositional(base(`,"positions":[1,3,5],"start":2,"end":20,"step":5`))
	assert.ErrorIs(t, err, ErrConfigInvalid, "start must be bigger than max(positions)")

	_, err = parseMergerPositional(base(`,"start":10,"end":5,"step":1`))
	assert.ErrorIs(t, err, ErrConfigInvalid, "end must be bigger than start")

	_, err = parseMergerPositional(base(`,"start":10,"end":20,"step":5`))
	assert.NoError(t, err)
}

func TestMergerPositional_GetData_SplicesAtPositions(t *testing.T) {
	fetchers := Fetchers{
		"fd": {Fn: fixedFetcher("default", 100)},
		"fp": {Fn: fixedFetcher("promo", 100)},
	}
	m := &MergerPositional{
		MergerID:   "m1",
		Positions:  []int{1, 3},
		Positional: newSubFeed("p", "fp"),
		Default:    newSubFeed("d", "fd"),
	}

	result, err := m.GetData(context.Background(), fetchers, "u", 5, Cursor{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 5)

	// positions are 1-indexed; promo items land at output indices 0 and 2.
	assert.Equal(t, map[string]any{"id": "promo-0"}, result.Data[0])
	assert.Equal(t, map[string]any{"id": "promo-1"}, result.Data[2])
	assert.True(t, result.HasNextPage)
	assert.Equal(t, 2, result.NextPage.Get("m1").Page)
}

func TestMergerPositional_GetData_NoMorePositionalPages(t *testing.T) {
	fetchers := Fetchers{
		"fd": {Fn: fixedFetcher("default", 100)},
		"fp": {Fn: fixedFetcher("promo", 2)}, // only 2 promo items ever exist
	}
	m := &MergerPositional{
		MergerID:   "m1",
		Positions:  []int{1, 3},
		Positional: newSubFeed("p", "fp"),
		Default:    newSubFeed("d", "fd"),
	}

	// Page 2: windowStart=5, windowEnd=10; positions {1,3} are both behind
	// the window, so furthest(3) < windowEnd(10) => positional exhausted.
	cursor := Cursor{"m1": {Page: 2}}
	result, err := m.GetData(context.Background(), fetchers, "u", 5, cursor, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.HasNextPage) // default still has more regardless
}
