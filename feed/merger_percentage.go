package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
)

// PercentageItem pairs a percentage weight with the node it weights
// (spec.md §3, merger_percentage.items).
type PercentageItem struct {
	Percentage int  `json:"percentage"`
	Data       Node `json:"-"`
}

type percentageItemWire struct {
	Percentage int             `json:"percentage"`
	Data       json.RawMessage `json:"data"`
}

func parsePercentageItem(raw json.RawMessage) (PercentageItem, error) {
	var w percentageItemWire
	if err := decodeStrict(raw, &w); err != nil {
		return PercentageItem{}, err
	}
	if len(w.Data) == 0 {
		return PercentageItem{}, fmt.Errorf("%w: percentage item missing required field \"data\"", ErrConfigInvalid)
	}
	node, err := parseNode(w.Data)
	if err != nil {
		return PercentageItem{}, err
	}
	return PercentageItem{Percentage: w.Percentage, Data: node}, nil
}

// MergerPercentage blends children proportionally to their configured
// percentage via round-robin draining (spec.md §4.6).
type MergerPercentage struct {
	MergerID string           `json:"merger_id"`
	Type     string           `json:"type"`
	Items    []PercentageItem `json:"-"`
	Shuffle  bool             `json:"shuffle"`

	shuffler Shuffler
}

type mergerPercentageWire struct {
	MergerID string            `json:"merger_id"`
	Type     string            `json:"type"`
	Items    []json.RawMessage `json:"items"`
	Shuffle  bool              `json:"shuffle"`
}

func parseMergerPercentage(raw json.RawMessage) (Node, error) {
	var w mergerPercentageWire
	if err := decodeStrict(raw, &w); err != nil {
		return nil, err
	}
	if w.MergerID == "" {
		return nil, fmt.Errorf("%w: merger_percentage missing required field \"merger_id\"", ErrConfigInvalid)
	}
	if len(w.Items) == 0 {
		return nil, fmt.Errorf("%w: merger_percentage %q requires a non-empty \"items\"", ErrConfigInvalid, w.MergerID)
	}
	items := make([]PercentageItem, len(w.Items))
	for i, raw := range w.Items {
		it, err := parsePercentageItem(raw)
		if err != nil {
			return nil, err
		}
		items[i] = it
	}
	return &MergerPercentage{MergerID: w.MergerID, Type: w.Type, Items: items, Shuffle: w.Shuffle}, nil
}

func (m *MergerPercentage) ID() string { return m.MergerID }

func (m *MergerPercentage) GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, redisClient session.Client, extra map[string]any) (PageResult, error) {
	result := PageResult{Data: []any{}, NextPage: Cursor{}, HasNextPage: false}

	itemsData := make([][]any, len(m.Items))
	for i, item := range m.Items {
		subLimit := limit * item.Percentage / 100
		itemResult, err := item.Data.GetData(ctx, fetchers, userID, subLimit, cursor, redisClient, extra)
		if err != nil {
			feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_percentage", "error").Inc()
			return PageResult{}, fmt.Errorf("merger_percentage %q: %w", m.MergerID, err)
		}
		itemsData[i] = itemResult.Data
		if itemResult.HasNextPage {
			result.HasNextPage = true
		}
		result.NextPage = result.NextPage.Merge(itemResult.NextPage)
	}

	result.Data = roundRobinBlend(itemsData)

	if m.Shuffle {
		shuffleItems(result.Data, m.shuffler)
	}

	feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_percentage", "ok").Inc()
	feedmetrics.PageItemsReturned.WithLabelValues("merger_percentage").Observe(float64(len(result.Data)))

	return result, nil
}

// roundRobinBlend implements spec.md §4.6's blender: min_length = max(1,
// min over non-empty list lengths), each list's per-pass draw size is
// round(len/min_length), lists are drained in order until all are
// exhausted.
func roundRobinBlend(itemsData [][]any) []any {
	if len(itemsData) == 0 {
		return []any{}
	}

	minLength := 0
	for _, d := range itemsData {
		if minLength == 0 || (len(d) > 0 && len(d) < minLength) {
			minLength = len(d)
		}
	}
	if minLength == 0 {
		minLength = 1
	}

	type cursor struct {
		items   []any
		current int
		size    int
	}
	cursors := make([]cursor, len(itemsData))
	fullLength := 0
	for i, d := range itemsData {
		cursors[i] = cursor{items: d, current: 0, size: pythonRound(float64(len(d)) / float64(minLength))}
		fullLength += len(d)
	}

	result := make([]any, 0, fullLength)
	for len(result) < fullLength {
		progressed := false
		for i := range cursors {
			c := &cursors[i]
			if c.current >= len(c.items) {
				continue
			}
			end := c.current + c.size
			if end > len(c.items) {
				end = len(c.items)
			}
			if end > c.current {
				result = append(result, c.items[c.current:end]...)
				c.current = end
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	return result
}

// pythonRound mirrors Python 3's round(): round-half-to-even.
func pythonRound(x float64) int {
	return int(math.RoundToEven(x))
}
