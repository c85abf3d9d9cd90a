package feed

import "context"

// Fetcher is a host-provided leaf data source (spec.md §6, "Leaf fetcher
// contract"). It must be reentrant; it may block on ctx.
type Fetcher func(ctx context.Context, userID any, limit int, next NodeCursor, params map[string]any) (ClientPage, error)

// RegisteredFetcher pairs a Fetcher with the set of parameter names it
// declares it accepts. SubFeed projects the engine's `extra` map down to
// this allowlist before the static subfeed_params overlay, the statically
// typed equivalent of the Python implementation's
// inspect.getfullargspec(fn).args introspection (spec.md §4.2, §9).
type RegisteredFetcher struct {
	Fn     Fetcher
	Params []string
}

// Fetchers maps a subfeed's method_name to its registered fetcher.
type Fetchers map[string]RegisteredFetcher

// projectParams returns the subset of extra whose keys are in declared,
// with overlay applied on top (overlay wins on conflict), per spec.md
// §4.2: "intersection of extra with the fetcher's declared parameter names
// plus the static subfeed_params overlay (static wins on key conflict)".
func projectParams(extra map[string]any, declared []string, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(declared)+len(overlay))
	declaredSet := make(map[string]bool, len(declared))
	for _, d := range declared {
		declaredSet[d] = true
	}
	for k, v := range extra {
		if declaredSet[k] {
			out[k] = v
		}
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
