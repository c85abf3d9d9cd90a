package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/epoch8/smartfeed/feed/feedmetrics"
	"github.com/epoch8/smartfeed/feed/session"
)

// SubFeed is the leaf node wrapping a host-provided fetcher (spec.md §4.2).
type SubFeed struct {
	SubfeedID     string         `json:"subfeed_id"`
	Type          string         `json:"type"`
	MethodName    string         `json:"method_name"`
	SubfeedParams map[string]any `json:"subfeed_params"`
	RaiseError    *bool          `json:"raise_error"`
	Shuffle       bool           `json:"shuffle"`

	shuffler Shuffler
}

func parseSubFeed(raw json.RawMessage) (Node, error) {
	sf := &SubFeed{RaiseError: boolPtr(true)}
	if err := decodeStrict(raw, sf); err != nil {
		return nil, err
	}
	if sf.SubfeedID == "" {
		return nil, fmt.Errorf("%w: subfeed missing required field \"subfeed_id\"", ErrConfigInvalid)
	}
	if sf.MethodName == "" {
		return nil, fmt.Errorf("%w: subfeed %q missing required field \"method_name\"", ErrConfigInvalid, sf.SubfeedID)
	}
	if sf.SubfeedParams == nil {
		sf.SubfeedParams = map[string]any{}
	}
	return sf, nil
}

func (s *SubFeed) ID() string { return s.SubfeedID }

func (s *SubFeed) raiseError() bool {
	return s.RaiseError == nil || *s.RaiseError
}

// GetData resolves method_name in fetchers and calls it with the
// intersection of extra and the fetcher's declared params, overlaid with
// subfeed_params (spec.md §4.2).
func (s *SubFeed) GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, _ session.Client, extra map[string]any) (PageResult, error) {
	sub := cursor.Get(s.SubfeedID)

	registered, ok := fetchers[s.MethodName]
	if !ok {
		feedmetrics.NodeEvaluationsTotal.WithLabelValues("subfeed", "error").Inc()
		err := fmt.Errorf("%w: %q (subfeed %q)", ErrFetcherMissing, s.MethodName, s.SubfeedID)
		if logger := loggerFromContext(ctx); logger != nil {
			logger.Error().Err(err).Str("subfeed_id", s.SubfeedID).Str("method_name", s.MethodName).Msg("subfeed fetcher not registered")
		}
		return PageResult{}, err
	}

	params := projectParams(extra, registered.Params, s.SubfeedParams)

	page, err := registered.Fn(ctx, userID, limit, sub, params)
	if err != nil {
		if !s.raiseError() {
			if logger := loggerFromContext(ctx); logger != nil {
				logger.Warn().Err(err).Str("subfeed_id", s.SubfeedID).Msg("subfeed fetcher error swallowed (raise_error=false)")
			}
			feedmetrics.NodeEvaluationsTotal.WithLabelValues("subfeed", "swallowed_error").Inc()
			page = ClientPage{Data: nil, NextPage: sub, HasNextPage: false}
		} else {
			feedmetrics.NodeEvaluationsTotal.WithLabelValues("subfeed", "error").Inc()
			if logger := loggerFromContext(ctx); logger != nil {
				logger.Error().Err(err).Str("subfeed_id", s.SubfeedID).Msg("subfeed fetcher raised")
			}
			return PageResult{}, fmt.Errorf("subfeed %q: %w", s.SubfeedID, err)
		}
	}

	if s.Shuffle {
		shuffleItems(page.Data, s.shuffler)
	}

	feedmetrics.NodeEvaluationsTotal.WithLabelValues("subfeed", "ok").Inc()
	feedmetrics.PageItemsReturned.WithLabelValues("subfeed").Observe(float64(len(page.Data)))

	return PageResult{
		Data:        page.Data,
		NextPage:    Cursor{s.SubfeedID: page.NextPage},
		HasNextPage: page.HasNextPage,
	}, nil
}

func boolPtr(b bool) *bool { return &b }
