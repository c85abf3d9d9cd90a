package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
)

// MergerViewSession materializes its child's output once per session and
// serves fixed-size windows off the cached list on every subsequent page
// (spec.md §4.8). The session is keyed by merger_id and user_id, optionally
// namespaced further by extra["custom_view_session_key"] (spec.md §10).
type MergerViewSession struct {
	MergerID    string `json:"merger_id"`
	Type        string `json:"type"`
	SessionSize int    `json:"session_size"`
	TTLSeconds  int    `json:"session_live_time"`
	Deduplicate bool   `json:"deduplicate"`
	DedupKey    string `json:"dedup_key"`
	Shuffle     bool   `json:"shuffle"`
	Data        Node   `json:"-"`

	shuffler Shuffler
}

type mergerViewSessionWire struct {
	MergerID    string          `json:"merger_id"`
	Type        string          `json:"type"`
	SessionSize int             `json:"session_size"`
	TTLSeconds  int             `json:"session_live_time"`
	Deduplicate bool            `json:"deduplicate"`
	DedupKey    string          `json:"dedup_key"`
	Shuffle     bool            `json:"shuffle"`
	Data        json.RawMessage `json:"data"`
}

func parseMergerViewSession(raw json.RawMessage) (Node, error) {
	var w mergerViewSessionWire
	if err := decodeStrict(raw, &w); err != nil {
		return nil, err
	}
	if w.MergerID == "" {
		return nil, fmt.Errorf("%w: merger_view_session missing required field \"merger_id\"", ErrConfigInvalid)
	}
	if w.SessionSize <= 0 {
		return nil, fmt.Errorf("%w: merger_view_session %q: \"session_size\" must be positive", ErrConfigInvalid, w.MergerID)
	}
	if len(w.Data) == 0 {
		return nil, fmt.Errorf("%w: merger_view_session %q missing required field \"data\"", ErrConfigInvalid, w.MergerID)
	}
	data, err := parseNode(w.Data)
	if err != nil {
		return nil, err
	}
	return &MergerViewSession{
		MergerID:    w.MergerID,
		Type:        w.Type,
		SessionSize: w.SessionSize,
		TTLSeconds:  w.TTLSeconds,
		Deduplicate: w.Deduplicate,
		DedupKey:    w.DedupKey,
		Shuffle:     w.Shuffle,
		Data:        data,
	}, nil
}

func (m *MergerViewSession) ID() string { return m.MergerID }

func (m *MergerViewSession) cacheKey(userID any, extra map[string]any) string {
	key := fmt.Sprintf("%s_%v", m.MergerID, userID)
	if custom, ok := extra["custom_view_session_key"]; ok && custom != nil && custom != "" {
		key = fmt.Sprintf("%s_%v", key, custom)
	}
	return key
}

func (m *MergerViewSession) GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, redisClient session.Client, extra map[string]any) (PageResult, error) {
	if redisClient == nil {
		feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_view_session", "error").Inc()
		return PageResult{}, fmt.Errorf("merger_view_session %q: %w", m.MergerID, ErrMissingRedis)
	}

	page := cursor.Get(m.MergerID).Page
	if page < 1 {
		page = 1
	}
	reset := !cursor.Has(m.MergerID)

	key := m.cacheKey(userID, extra)
	cache := session.NewCache(redisClient)

	materialize := func(ctx context.Context) ([]any, error) {
		childResult, err := m.Data.GetData(ctx, fetchers, userID, m.SessionSize, Cursor{}, redisClient, extra)
		if err != nil {
			return nil, err
		}
		return m.dedup(childResult.Data)
	}

	ttl := time.Duration(m.TTLSeconds) * time.Second

	window, hasNext, err := cache.Window(ctx, key, page, limit, reset, m.SessionSize, ttl, materialize)
	if err != nil {
		feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_view_session", "error").Inc()
		feedmetrics.SessionCacheResultsTotal.WithLabelValues(m.MergerID, "error").Inc()
		return PageResult{}, fmt.Errorf("merger_view_session %q: %w", m.MergerID, err)
	}
	feedmetrics.SessionCacheResultsTotal.WithLabelValues(m.MergerID, cacheOutcome(reset)).Inc()

	window = append([]any{}, window...)
	if m.Shuffle {
		shuffleItems(window, m.shuffler)
	}

	next := Cursor{m.MergerID: NodeCursor{Page: page + 1, After: nil}}

	feedmetrics.NodeEvaluationsTotal.WithLabelValues("merger_view_session", "ok").Inc()
	feedmetrics.PageItemsReturned.WithLabelValues("merger_view_session").Observe(float64(len(window)))

	return PageResult{Data: window, NextPage: next, HasNextPage: hasNext}, nil
}

// dedup drops repeats of dedup_key (or, when dedup_key is unset, repeats of
// the item itself), first occurrence wins (DESIGN.md Open Question:
// deduplicate). An item missing a configured dedup_key fails the call with
// ErrDedupKeyAbsent rather than being silently skipped.
func (m *MergerViewSession) dedup(data []any) ([]any, error) {
	if !m.Deduplicate {
		return data, nil
	}

	out := make([]any, 0, len(data))
	seen := map[any]bool{}
	dropped := 0
	for _, item := range data {
		key, err := m.dedupKey(item)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	if dropped > 0 {
		feedmetrics.DedupDroppedTotal.WithLabelValues(m.MergerID).Add(float64(dropped))
	}
	return out, nil
}

// dedupKey returns the comparable value an item is deduplicated on: the
// value at dedup_key when one is configured, otherwise the item identity
// itself (spec.md §4.8, "key(item) is the item itself when dedup_key is
// null"). Maps and slices aren't comparable as Go map keys, so the item is
// marshaled to a canonical JSON string instead.
func (m *MergerViewSession) dedupKey(item any) (any, error) {
	if m.DedupKey != "" {
		v, ok := itemKey(item, m.DedupKey)
		if !ok {
			return nil, fmt.Errorf("merger_view_session %q: %w", m.MergerID, ErrDedupKeyAbsent)
		}
		return v, nil
	}
	if item == nil {
		return "<nil>", nil
	}
	if t := reflect.TypeOf(item); t.Comparable() {
		return item, nil
	}
	b, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("merger_view_session %q: item not usable as a dedup key: %w", m.MergerID, err)
	}
	return string(b), nil
}

func cacheOutcome(reset bool) string {
	if reset {
		return "materialized"
	}
	return "hit"
}
