package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
)

// MergerAppend concatenates children sequentially with a shrinking limit
// (spec.md §4.3): child k receives limit minus the total items already
// collected from children before it.
type MergerAppend struct {
	MergerID string `json:"merger_id"`
	Type     string `json:"type"`
	Items    []Node `json:"-"`
	Shuffle  bool   `json:"shuffle"`

	shuffler Shuffler
}

type mergerAppendWire struct {
	MergerID string            `json:"merger_id"`
	Type     string            `json:"type"`
	Items    []json.RawMessage `json:"items"`
	Shuffle  bool              `json:"shuffle"`
}

func parseMergerAppend(raw json.RawMessage) (Node, error) {
	var w mergerAppendWire
	if err := decodeStrict(raw, &w); err != nil {
		return nil, err
	}
	if w.MergerID == "" {
		return nil, fmt.Errorf("%w: merger_append missing required field \"merger_id\"", ErrConfigInvalid)
	}
	if len(w.Items) == 0 {
		return nil, fmt.Errorf("%w: merger_append %q requires a non-empty \"items\"", ErrConfigInvalid, w.MergerID)
	}
	items, err := parseNodeList(w.Items)
	if err != nil {
		return nil, err
	}
	return &MergerAppend{MergerID: w.MergerID, Type: w.Type, Items: items, Shuffle: w.Shuffle}, nil
}

func parseNodeList(raws []json.RawMessage) ([]Node, error) {
	out := make([]Node, len(raws))
	for i, r := range raws {
		n, err := parseNode(r)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (m *MergerAppend) ID() string { return m.MergerID }

func (m *MergerAppend) GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, redisClient session.Client, extra map[string]any) (PageResult, error) {
	result := PageResult{Data: []any{}, NextPage: Cursor{}, HasNextPage: false}

	remaining := limit
	for _, item := range m.Items {
		itemResult, err := item.GetData(ctx, fetchers, userID, remaining, cursor, redisClient, extra)
		if err != nil {
			feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_append", "error").Inc()
			return PageResult{}, fmt.Errorf("merger_append %q: %w", m.MergerID, err)
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

	if m.Shuffle {
		shuffleItems(result.Data, m.shuffler)
	}

	feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_append", "ok").Inc()
	feedmetrics.PageItemsReturned.WithLabelValues("merger_append").Observe(float64(len(result.Data)))

	return result, nil
}
