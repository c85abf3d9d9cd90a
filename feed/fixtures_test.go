package feed

import (
	"context"
	"fmt"
)

// fixedFetcher returns a Fetcher that serves total sequential items named
// prefix-<n> out of an in-memory list, paginating via NodeCursor.Page, and
// reporting hasNextPage honestly.
func fixedFetcher(prefix string, total int) Fetcher {
	return func(ctx context.Context, userID any, limit int, next NodeCursor, params map[string]any) (ClientPage, error) {
		page := next.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * limit
		if start > total {
			start = total
		}
		end := start + limit
		if end > total {
			end = total
		}

		data := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			data = append(data, map[string]any{"id": fmt.Sprintf("%s-%d", prefix, i)})
		}

		return ClientPage{
			Data:        data,
			NextPage:    NodeCursor{Page: page + 1, After: nil},
			HasNextPage: end < total,
		}, nil
	}
}

// erroringFetcher always returns err.
func erroringFetcher(err error) Fetcher {
	return func(ctx context.Context, userID any, limit int, next NodeCursor, params map[string]any) (ClientPage, error) {
		return ClientPage{}, err
	}
}

// newSubFeed builds a *SubFeed node directly (bypassing JSON parsing) for
// use as a child node in merger tests.
func newSubFeed(id, methodName string) *SubFeed {
	return &SubFeed{SubfeedID: id, Type: "subfeed", MethodName: methodName, SubfeedParams: map[string]any{}, RaiseError: boolPtr(true)}
}
