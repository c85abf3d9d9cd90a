package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMergerPercentage_RequiresItems(t *testing.T) {
	_, err := parseMergerPercentage([]byte(`{"type":"merger_percentage","merger_id":"m1","items":[]}`))
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestPythonRound_HalfToEven(t *testing.T) {
	assert.Equal(t, 2, pythonRound(1.5))
	assert.Equal(t, 2, pythonRound(2.5))
	assert.Equal(t, 0, pythonRound(0.0))
	assert.Equal(t, 1, pythonRound(1.0))
}

func TestRoundRobinBlend_MatchesSpecExample(t *testing.T) {
	// 40/60 split over a limit of 10: subfeed A gets 4 items, B gets 6.
	a := []any{"a0", "a1", "a2", "a3"}
	b := []any{"b0", "b1", "b2", "b3", "b4", "b5"}

	out := roundRobinBlend([][]any{a, b})
	require.Len(t, out, 10)
	// min_length=4; size_a=round(4/4)=1; size_b=round(6/4)=2 (half-to-even).
	assert.Equal(t, "a0", out[0])
	assert.Equal(t, "b0", out[1])
	assert.Equal(t, "b1", out[2])
	assert.Equal(t, "a1", out[3])
}

func TestRoundRobinBlend_HandlesEmptyList(t *testing.T) {
	out := roundRobinBlend([][]any{{}, {"x", "y"}})
	assert.Equal(t, []any{"x", "y"}, out)
}

func TestMergerPercentage_GetData_ProportionalLimits(t *testing.T) {
	var seenLimitTrending, seenLimitLatest int
	fetchers := Fetchers{
		"trending": {Fn: func(ctx context.Context, userID any, limit int, next NodeCursor, params map[string]any) (ClientPage, error) {
			seenLimitTrending = limit
			return fixedFetcher("t", 100)(ctx, userID, limit, next, params)
		}},
		"latest": {Fn: func(ctx context.Context, userID any, limit int, next NodeCursor, params map[string]any) (ClientPage, error) {
			seenLimitLatest = limit
			return fixedFetcher("l", 100)(ctx, userID, limit, next, params)
		}},
	}

	m := &MergerPercentage{
		MergerID: "m1",
		Items: []PercentageItem{
			{Percentage: 60, Data: newSubFeed("t", "trending")},
			{Percentage: 40, Data: newSubFeed("l", "latest")},
		},
	}

	result, err := m.GetData(context.Background(), fetchers, "u", 10, Cursor{}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 6, seenLimitTrending)
	assert.Equal(t, 4, seenLimitLatest)
	require.Len(t, result.Data, 10)
	assert.True(t, result.HasNextPage)
}
