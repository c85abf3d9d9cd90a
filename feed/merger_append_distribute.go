package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
)

// MergerAppendDistribute assembles its children as MergerAppend does, then
// optionally sorts and redistributes the result so no two adjacent items
// share the same distribution_key (spec.md §4.4).
type MergerAppendDistribute struct {
	MergerID         string `json:"merger_id"`
	Type             string `json:"type"`
	Items            []Node `json:"-"`
	DistributionKey  string `json:"distribution_key"`
	SortingKey       string `json:"sorting_key"`
	SortingDesc      bool   `json:"sorting_desc"`
}

type mergerAppendDistributeWire struct {
	MergerID        string            `json:"merger_id"`
	Type            string            `json:"type"`
	Items           []json.RawMessage `json:"items"`
	DistributionKey string            `json:"distribution_key"`
	SortingKey      *string           `json:"sorting_key"`
	SortingDesc     bool              `json:"sorting_desc"`
}

func parseMergerAppendDistribute(raw json.RawMessage) (Node, error) {
	var w mergerAppendDistributeWire
	if err := decodeStrict(raw, &w); err != nil {
		return nil, err
	}
	if w.MergerID == "" {
		return nil, fmt.Errorf("%w: merger_distribute missing required field \"merger_id\"", ErrConfigInvalid)
	}
	if len(w.Items) == 0 {
		return nil, fmt.Errorf("%w: merger_distribute %q requires a non-empty \"items\"", ErrConfigInvalid, w.MergerID)
	}
	if w.DistributionKey == "" {
		return nil, fmt.Errorf("%w: merger_distribute %q missing required field \"distribution_key\"", ErrConfigInvalid, w.MergerID)
	}
	items, err := parseNodeList(w.Items)
	if err != nil {
		return nil, err
	}
	m := &MergerAppendDistribute{
		MergerID:        w.MergerID,
		Type:            w.Type,
		Items:           items,
		DistributionKey: w.DistributionKey,
		SortingDesc:     w.SortingDesc,
	}
	if w.SortingKey != nil {
		m.SortingKey = *w.SortingKey
	}
	return m, nil
}

func (m *MergerAppendDistribute) ID() string { return m.MergerID }

func (m *MergerAppendDistribute) GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, redisClient session.Client, extra map[string]any) (PageResult, error) {
	result := PageResult{Data: []any{}, NextPage: Cursor{}, HasNextPage: false}

	remaining := limit
	for _, item := range m.Items {
		itemResult, err := item.GetData(ctx, fetchers, userID, remaining, cursor, redisClient, extra)
		if err != nil {
			feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_distribute", "error").Inc()
			return PageResult{}, fmt.Errorf("merger_distribute %q: %w", m.MergerID, err)
		}

		result.Data = append(result.Data, itemResult.Data...)
		remaining -= len(itemResult.Data)

		if itemResult.HasNextPage {
			result.HasNextPage = true
		}
		result.NextPage = result.NextPage.Merge(itemResult.NextPage)

		if remaining <= 0 {
			break
		}
	}

	if m.SortingKey != "" {
		sortByKey(result.Data, m.SortingKey, m.SortingDesc)
	}
	result.Data = uniformDistribute(result.Data, m.DistributionKey)

	feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_distribute", "ok").Inc()
	feedmetrics.PageItemsReturned.WithLabelValues("merger_distribute").Observe(float64(len(result.Data)))

	return result, nil
}

// sortByKey stable-sorts data by the value at key, descending if desc.
func sortByKey(data []any, key string, desc bool) {
	sort.SliceStable(data, func(i, j int) bool {
		vi, _ := itemKey(data[i], key)
		vj, _ := itemKey(data[j], key)
		less := compareValues(vi, vj)
		if desc {
			return !less && compareValues(vj, vi)
		}
		return less
	})
}

// compareValues reports whether a < b for the value kinds items are likely
// to carry (numbers, strings); anything else falls back to comparing the
// %v representation so sorting never panics on mixed types.
func compareValues(a, b any) bool {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// uniformDistribute buckets data by distKey and drains the buckets
// round-robin such that no two adjacent outputs share a key, unless only
// one bucket remains (spec.md §4.4 algorithm).
func uniformDistribute(data []any, distKey string) []any {
	order := make([]string, 0)
	queues := map[string][]any{}

	for _, item := range data {
		v, _ := itemKey(item, distKey)
		k := fmt.Sprint(v)
		if _, ok := queues[k]; !ok {
			order = append(order, k)
		}
		queues[k] = append(queues[k], item)
	}

	result := make([]any, 0, len(data))
	var prevKey string
	hasPrev := false

	for len(queues) > 0 {
		for _, k := range order {
			q, ok := queues[k]
			if !ok {
				continue
			}
			if len(q) == 0 {
				delete(queues, k)
				continue
			}
			if !hasPrev || k != prevKey || len(queues) == 1 {
				result = append(result, q[0])
				queues[k] = q[1:]
				prevKey = k
				hasPrev = true
				if len(queues[k]) == 0 {
					delete(queues, k)
				}
			}
		}
	}

	return result
}
