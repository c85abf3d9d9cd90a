package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
)

// MergerPositional splices items from "positional" into fixed output
// positions of "default"'s page (spec.md §4.5).
type MergerPositional struct {
	MergerID   string `json:"merger_id"`
	Type       string `json:"type"`
	Positions  []int  `json:"positions"`
	Start      *int   `json:"start"`
	End        *int   `json:"end"`
	Step       *int   `json:"step"`
	Positional Node   `json:"-"`
	Default    Node   `json:"-"`
}

type mergerPositionalWire struct {
	MergerID   string          `json:"merger_id"`
	Type       string          `json:"type"`
	Positions  []int           `json:"positions"`
	Start      *int            `json:"start"`
	End        *int            `json:"end"`
	Step       *int            `json:"step"`
	Positional json.RawMessage `json:"positional"`
	Default    json.RawMessage `json:"default"`
}

func parseMergerPositional(raw json.RawMessage) (Node, error) {
	var w mergerPositionalWire
	if err := decodeStrict(raw, &w); err != nil {
		return nil, err
	}
	if w.MergerID == "" {
		return nil, fmt.Errorf("%w: merger_positional missing required field \"merger_id\"", ErrConfigInvalid)
	}
	if len(w.Positional) == 0 || len(w.Default) == 0 {
		return nil, fmt.Errorf("%w: merger_positional %q requires both \"positional\" and \"default\"", ErrConfigInvalid, w.MergerID)
	}

	hasStep := w.Start != nil && w.End != nil && w.Step != nil
	if len(w.Positions) == 0 && !hasStep {
		return nil, fmt.Errorf(
			"%w: merger_positional %q requires \"positions\" or (\"start\", \"end\", \"step\")",
			ErrConfigInvalid, w.MergerID,
		)
	}
	if w.Start != nil && len(w.Positions) > 0 {
		if *w.Start <= maxInt(w.Positions) {
			return nil, fmt.Errorf(
				"%w: merger_positional %q: \"start\" must be bigger than the maximum of \"positions\"",
				ErrConfigInvalid, w.MergerID,
			)
		}
	}
	if w.Start != nil && w.End != nil && *w.End <= *w.Start {
		return nil, fmt.Errorf("%w: merger_positional %q: \"end\" must be bigger than \"start\"", ErrConfigInvalid, w.MergerID)
	}

	positional, err := parseNode(w.Positional)
	if err != nil {
		return nil, err
	}
	def, err := parseNode(w.Default)
	if err != nil {
		return nil, err
	}

	return &MergerPositional{
		MergerID:   w.MergerID,
		Type:       w.Type,
		Positions:  w.Positions,
		Start:      w.Start,
		End:        w.End,
		Step:       w.Step,
		Positional: positional,
		Default:    def,
	}, nil
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func (m *MergerPositional) ID() string { return m.MergerID }

func (m *MergerPositional) GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, redisClient session.Client, extra map[string]any) (PageResult, error) {
	page := cursor.Get(m.MergerID).Page
	if page < 1 {
		page = 1
	}
	windowStart := (page - 1) * limit
	windowEnd := page * limit

	var pagePositions []int
	for _, p := range m.Positions {
		if p >= windowStart && p <= windowEnd {
			pagePositions = append(pagePositions, p-windowStart)
		}
	}
	if m.Start != nil && m.End != nil && m.Step != nil {
		for p := *m.Start; p < *m.End; p += *m.Step {
			if p >= windowStart && p <= windowEnd {
				pagePositions = append(pagePositions, p-windowStart)
			}
		}
	}

	defaultResult, err := m.Default.GetData(ctx, fetchers, userID, limit, cursor, redisClient, extra)
	if err != nil {
		feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_positional", "error").Inc()
		return PageResult{}, fmt.Errorf("merger_positional %q: default: %w", m.MergerID, err)
	}

	positionalResult, err := m.Positional.GetData(ctx, fetchers, userID, len(pagePositions), cursor, redisClient, extra)
	if err != nil {
		feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_positional", "error").Inc()
		return PageResult{}, fmt.Errorf("merger_positional %q: positional: %w", m.MergerID, err)
	}

	data := append([]any{}, defaultResult.Data...)
	for i, post := range positionalResult.Data {
		if i >= len(pagePositions) {
			break
		}
		idx := pagePositions[i] - 1
		if idx < 0 {
			idx = 0
		}
		if idx > len(data) {
			idx = len(data)
		}
		data = append(data[:idx], append([]any{post}, data[idx:]...)...)
	}
	data = clampLimit(data, limit)

	// positionalHasNextPage per spec.md §4.5: true while the page window
	// hasn't yet reached the furthest configured position.
	furthest := 0
	havePositions := len(m.Positions) > 0
	if havePositions {
		furthest = maxInt(m.Positions)
	}
	if m.End != nil {
		if *m.End-1 > furthest || !havePositions {
			furthest = *m.End - 1
		}
	}
	positionalHasNextPage := windowEnd < furthest

	next := Cursor{}
	next = next.Merge(defaultResult.NextPage)
	next = next.Merge(positionalResult.NextPage)
	next[m.MergerID] = NodeCursor{Page: page + 1, After: nil}

	hasNext := defaultResult.HasNextPage || (positionalHasNextPage && positionalResult.HasNextPage)

	feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_positional", "ok").Inc()
	feedmetrics.PageItemsReturned.WithLabelValues("merger_positional").Observe(float64(len(data)))

	return PageResult{Data: data, NextPage: next, HasNextPage: hasNext}, nil
}
