package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/epoch8/smartfeed/feed/session"
)

// Node is the single operation every tree position exposes (spec.md §4.1).
// Interior nodes (mergers) and leaves (SubFeed) both implement it — a
// tagged-variant tree via one interface, rather than a deep class
// hierarchy, per spec.md §9 ("Recursive polymorphic tree").
type Node interface {
	// ID returns this node's merger_id or subfeed_id.
	ID() string

	// GetData evaluates this node: it resolves its own sub-cursor from
	// cursor, recurses into any children, and returns a PageResult whose
	// NextPage carries the updated cursor entries of the descendants it
	// evaluated, plus its own entry for nodes that paginate by page
	// (subfeed, merger_positional, merger_percentage_gradient).
	// merger_view_session returns only its own entry.
	GetData(ctx context.Context, fetchers Fetchers, userID any, limit int, cursor Cursor, redisClient session.Client, extra map[string]any) (PageResult, error)
}

// Config is the parsed, immutable root of a feed tree (spec.md §6:
// `{"version": string, "feed": Node}`).
type Config struct {
	Version string
	Feed    Node
}

// configWire mirrors the JSON root shape before Feed is resolved into a
// concrete Node.
type configWire struct {
	Version string          `json:"version"`
	Feed    json.RawMessage `json:"feed"`
}

// ParseConfig decodes and validates a feed configuration per spec.md §3 and
// §6. Unknown fields are rejected; missing required fields are rejected;
// merger_id/subfeed_id uniqueness and the merger_positional /
// merger_percentage_gradient invariants are checked. A non-nil error is
// always ErrConfigInvalid wrapped with the specific violation.
func ParseConfig(raw []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var wire configWire
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if wire.Version == "" {
		return nil, fmt.Errorf("%w: missing required field \"version\"", ErrConfigInvalid)
	}
	if len(wire.Feed) == 0 {
		return nil, fmt.Errorf("%w: missing required field \"feed\"", ErrConfigInvalid)
	}

	feed, err := parseNode(wire.Feed)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	if err := checkUniqueIDs(feed, seen); err != nil {
		return nil, err
	}

	return &Config{Version: wire.Version, Feed: feed}, nil
}

// nodeTypeProbe is used only to read the "type" discriminator before
// dispatching to the concrete per-type decoder.
type nodeTypeProbe struct {
	Type string `json:"type"`
}

// parseNode decodes raw into the concrete Node implementation named by its
// "type" field, recursing into nested node fields as needed.
func parseNode(raw json.RawMessage) (Node, error) {
	var probe nodeTypeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	switch probe.Type {
	case "subfeed":
		return parseSubFeed(raw)
	case "merger_append":
		return parseMergerAppend(raw)
	case "merger_distribute":
		return parseMergerAppendDistribute(raw)
	case "merger_positional":
		return parseMergerPositional(raw)
	case "merger_percentage":
		return parseMergerPercentage(raw)
	case "merger_percentage_gradient":
		return parseMergerPercentageGradient(raw)
	case "merger_view_session":
		return parseMergerViewSession(raw)
	case "":
		return nil, fmt.Errorf("%w: node missing required field \"type\"", ErrConfigInvalid)
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", ErrConfigInvalid, probe.Type)
	}
}

// decodeStrict unmarshals raw into v, rejecting unknown fields, matching
// spec.md §6 ("Unknown fields are rejected").
func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return nil
}

// checkUniqueIDs walks the tree verifying invariant 1 (spec.md §3): all
// merger_id and subfeed_id values are unique across the tree.
func checkUniqueIDs(n Node, seen map[string]bool) error {
	id := n.ID()
	if seen[id] {
		return fmt.Errorf("%w: duplicate node id %q", ErrConfigInvalid, id)
	}
	seen[id] = true

	for _, child := range children(n) {
		if err := checkUniqueIDs(child, seen); err != nil {
			return err
		}
	}
	return nil
}

// children returns n's direct child nodes, if any, for tree validation and
// walking purposes.
func children(n Node) []Node {
	switch v := n.(type) {
	case *SubFeed:
		return nil
	case *MergerAppend:
		return v.Items
	case *MergerAppendDistribute:
		return v.Items
	case *MergerPositional:
		return []Node{v.Positional, v.Default}
	case *MergerPercentage:
		out := make([]Node, len(v.Items))
		for i, it := range v.Items {
			out[i] = it.Data
		}
		return out
	case *MergerPercentageGradient:
		return []Node{v.ItemFrom.Data, v.ItemTo.Data}
	case *MergerViewSession:
		return []Node{v.Data}
	default:
		return nil
	}
}
