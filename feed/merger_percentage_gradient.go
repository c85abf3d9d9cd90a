package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
)

// GradientItem wraps one end of a percentage gradient (spec.md §4.7): its
// starting percentage weight plus the child node supplying data.
type GradientItem struct {
	Percentage int
	Data       Node
}

type gradientItemWire struct {
	Percentage int             `json:"percentage"`
	Data       json.RawMessage `json:"data"`
}

func parseGradientItem(raw json.RawMessage, mergerID, field string) (GradientItem, error) {
	var w gradientItemWire
	if err := decodeStrict(raw, &w); err != nil {
		return GradientItem{}, err
	}
	if w.Percentage < 0 || w.Percentage > 100 {
		return GradientItem{}, fmt.Errorf("%w: merger_percentage_gradient %q: %q.\"percentage\" must be between 0 and 100", ErrConfigInvalid, mergerID, field)
	}
	if len(w.Data) == 0 {
		return GradientItem{}, fmt.Errorf("%w: merger_percentage_gradient %q: %q missing required field \"data\"", ErrConfigInvalid, mergerID, field)
	}
	node, err := parseNode(w.Data)
	if err != nil {
		return GradientItem{}, err
	}
	return GradientItem{Percentage: w.Percentage, Data: node}, nil
}

// MergerPercentageGradient blends item_from and item_to with a split that
// shifts by step percentage points every size_to_step output positions,
// starting from item_from.percentage/item_to.percentage (spec.md §4.7).
type MergerPercentageGradient struct {
	MergerID   string `json:"merger_id"`
	Type       string `json:"type"`
	Step       int    `json:"step"`
	SizeToStep int    `json:"size_to_step"`
	Shuffle    bool   `json:"shuffle"`
	ItemFrom   GradientItem
	ItemTo     GradientItem

	shuffler Shuffler
}

type mergerPercentageGradientWire struct {
	MergerID   string          `json:"merger_id"`
	Type       string          `json:"type"`
	Step       int             `json:"step"`
	SizeToStep int             `json:"size_to_step"`
	Shuffle    bool            `json:"shuffle"`
	ItemFrom   json.RawMessage `json:"item_from"`
	ItemTo     json.RawMessage `json:"item_to"`
}

func parseMergerPercentageGradient(raw json.RawMessage) (Node, error) {
	var w mergerPercentageGradientWire
	if err := decodeStrict(raw, &w); err != nil {
		return nil, err
	}
	if w.MergerID == "" {
		return nil, fmt.Errorf("%w: merger_percentage_gradient missing required field \"merger_id\"", ErrConfigInvalid)
	}
	if w.Step < 1 || w.Step > 100 {
		return nil, fmt.Errorf("%w: merger_percentage_gradient %q: \"step\" must be between 1 and 100", ErrConfigInvalid, w.MergerID)
	}
	if w.SizeToStep < 1 {
		return nil, fmt.Errorf("%w: merger_percentage_gradient %q: \"size_to_step\" must be at least 1", ErrConfigInvalid, w.MergerID)
	}
	if len(w.ItemFrom) == 0 || len(w.ItemTo) == 0 {
		return nil, fmt.Errorf("%w: merger_percentage_gradient %q requires both \"item_from\" and \"item_to\"", ErrConfigInvalid, w.MergerID)
	}

	itemFrom, err := parseGradientItem(w.ItemFrom, w.MergerID, "item_from")
	if err != nil {
		return nil, err
	}
	itemTo, err := parseGradientItem(w.ItemTo, w.MergerID, "item_to")
	if err != nil {
		return nil, err
	}

	return &MergerPercentageGradient{
		MergerID:   w.MergerID,
		Type:       w.Type,
		Step:       w.Step,
		SizeToStep: w.SizeToStep,
		Shuffle:    w.Shuffle,
		ItemFrom:   itemFrom,
		ItemTo:     itemTo,
	}, nil
}

func (m *MergerPercentageGradient) ID() string { return m.MergerID }

// percentBucket is one segment of the schedule computed by
// calculateLimitsAndPercents: the next bucket.limit output positions split
// bucket.from/bucket.to percent between item_from and item_to.
type percentBucket struct {
	limit int
	from  int
	to    int
}

// calculateLimitsAndPercents ports _calculate_limits_and_percents (spec.md
// §4.7): it walks output positions in size_to_step increments, shifting the
// from/to split by step points on every increment after the first (clamped
// to 0/100 once either bound is hit), and accumulates the item_from/item_to
// limits that this page's buckets need. Only increments past
// start_position=limit*(page-1) form a bucket and add to those limits;
// once a bucket's to reaches 100, later increments fold into it rather than
// opening a fresh 0/100 bucket.
func (m *MergerPercentageGradient) calculateLimitsAndPercents(page, limit int) (limitFrom, limitTo int, buckets []percentBucket) {
	percentFrom := m.ItemFrom.Percentage
	percentTo := m.ItemTo.Percentage
	startPosition := limit * (page - 1)
	firstIter := true

	for i := m.SizeToStep; i < limit*page+m.SizeToStep; i += m.SizeToStep {
		if !firstIter && percentTo < 100 {
			percentFrom -= m.Step
			percentTo += m.Step
			if percentTo > 100 || percentFrom < 0 {
				percentFrom = 0
				percentTo = 100
			}
		}

		if i > startPosition {
			iterLimit := i - startPosition
			if i > limit*page {
				iterLimit = limit*page - startPosition
			}
			startPosition = i

			if len(buckets) > 0 && buckets[len(buckets)-1].to >= 100 {
				limitTo += iterLimit
				buckets[len(buckets)-1].limit += iterLimit
			} else {
				limitFrom += iterLimit * percentFrom / 100
				limitTo += iterLimit * percentTo / 100
				buckets = append(buckets, percentBucket{limit: iterLimit, from: percentFrom, to: percentTo})
			}
		}

		firstIter = false
	}

	return limitFrom, limitTo, buckets
}

func (m *MergerPercentageGradient) GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, redisClient session.Client, extra map[string]any) (PageResult, error) {
	page := cursor.Get(m.MergerID).Page
	if page < 1 {
		page = 1
	}

	limitFrom, limitTo, buckets := m.calculateLimitsAndPercents(page, limit)

	fromResult, err := m.ItemFrom.Data.GetData(ctx, fetchers, userID, limitFrom, cursor, redisClient, extra)
	if err != nil {
		feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_percentage_gradient", "error").Inc()
		return PageResult{}, fmt.Errorf("merger_percentage_gradient %q: item_from: %w", m.MergerID, err)
	}
	toResult, err := m.ItemTo.Data.GetData(ctx, fetchers, userID, limitTo, cursor, redisClient, extra)
	if err != nil {
		feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_percentage_gradient", "error").Inc()
		return PageResult{}, fmt.Errorf("merger_percentage_gradient %q: item_to: %w", m.MergerID, err)
	}

	data := make([]any, 0, limit)
	fromIdx, toIdx := 0, 0
	for _, b := range buckets {
		fromEnd := fromIdx + b.limit*b.from/100
		toEnd := toIdx + b.limit*b.to/100
		data = append(data, sliceClamped(fromResult.Data, fromIdx, fromEnd)...)
		data = append(data, sliceClamped(toResult.Data, toIdx, toEnd)...)
		fromIdx, toIdx = fromEnd, toEnd
	}

	if m.Shuffle {
		shuffleItems(data, m.shuffler)
	}

	next := Cursor{}
	next = next.Merge(fromResult.NextPage)
	next = next.Merge(toResult.NextPage)
	next[m.MergerID] = NodeCursor{Page: page + 1, After: nil}

	hasNext := fromResult.HasNextPage || toResult.HasNextPage

	feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_percentage_gradient", "ok").Inc()
	feedmetrics.PageItemsReturned.WithLabelValues("merger_percentage_gradient").Observe(float64(len(data)))

	return PageResult{Data: data, NextPage: next, HasNextPage: hasNext}, nil
}

// sliceClamped returns data[start:end], clamped so a fetcher returning fewer
// items than its requested limit can't panic a bucket slice out of range.
func sliceClamped(data []any, start, end int) []any {
	if start < 0 {
		start = 0
	}
	if start > len(data) {
		start = len(data)
	}
	if end > len(data) {
		end = len(data)
	}
	if end < start {
		end = start
	}
	return data[start:end]
}
