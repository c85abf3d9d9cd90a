package feed

import "errors"

// Error taxonomy per spec.md §7. Each sentinel is wrapped with call-site
// context via fmt.Errorf("...: %w", Err...) rather than compared by
// message text.
var (
	// ErrConfigInvalid is returned at parse time when the config tree
	// violates an invariant from spec.md §3 (duplicate ids, malformed
	// merger_positional/merger_percentage_gradient bounds, unknown or
	// missing fields).
	ErrConfigInvalid = errors.New("smartfeed: invalid config")

	// ErrMissingRedis is returned when a merger_view_session node is
	// evaluated without a configured Redis client.
	ErrMissingRedis = errors.New("smartfeed: redis client required for view_session")

	// ErrFetcherMissing is returned when a subfeed's method_name is absent
	// from the Fetchers map supplied to the Engine.
	ErrFetcherMissing = errors.New("smartfeed: fetcher not registered")

	// ErrDedupKeyAbsent is returned when deduplicate=true and an item in a
	// materialized session is missing its dedup_key, per spec.md §4.8 and
	// §7 ("fatal invariant violation for that item").
	ErrDedupKeyAbsent = errors.New("smartfeed: dedup_key absent on item")
)
