package feed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// NodeCursor is the pagination state for a single node: a 1-based page
// ordinal plus an opaque sentinel the leaf fetcher understands.
type NodeCursor struct {
	Page  int `json:"page"`
	After any `json:"after"`
}

// defaultNodeCursor is what an absent cursor entry means.
func defaultNodeCursor() NodeCursor {
	return NodeCursor{Page: 1, After: nil}
}

// Cursor is the sole continuation state threaded between calls: a flat
// mapping from node id (subfeed_id or merger_id) to that node's
// NodeCursor. A flat map, rather than a tree mirroring the config, lets the
// engine accept partial cursors and silently ignore stale entries left over
// from a previous config shape.
type Cursor map[string]NodeCursor

// Get returns the cursor entry for id, or the default {page:1, after:nil}
// if absent.
func (c Cursor) Get(id string) NodeCursor {
	if c == nil {
		return defaultNodeCursor()
	}
	if nc, ok := c[id]; ok {
		return nc
	}
	return defaultNodeCursor()
}

// Has reports whether id has an explicit entry in the cursor.
func (c Cursor) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c[id]
	return ok
}

// Clone returns a shallow copy safe for a callee to mutate independently.
func (c Cursor) Clone() Cursor {
	out := make(Cursor, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge returns a new Cursor with every entry of other overlaid on top of c.
func (c Cursor) Merge(other Cursor) Cursor {
	out := c.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// cursorWire is the §6 wire shape: {"data": {<node_id>: {page, after}}}.
type cursorWire struct {
	Data map[string]NodeCursor `json:"data"`
}

// MarshalJSON emits the decoded {"data": {...}} object shape.
func (c Cursor) MarshalJSON() ([]byte, error) {
	data := map[string]NodeCursor(c)
	if data == nil {
		data = map[string]NodeCursor{}
	}
	return json.Marshal(cursorWire{Data: data})
}

// UnmarshalJSON accepts the decoded {"data": {...}} object shape.
func (c *Cursor) UnmarshalJSON(b []byte) error {
	var w cursorWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("cursor: %w", err)
	}
	*c = Cursor(w.Data)
	return nil
}

// EncodeCursor base64url-encodes a cursor's JSON wire form, the shape a
// transport boundary (out of core scope) would hand back to a client.
func EncodeCursor(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// DecodeCursor accepts either an already-decoded JSON object or a
// base64url-encoded string, per spec.md §6 ("The engine accepts both the
// decoded object and the encoded string at ingress").
func DecodeCursor(raw any) (Cursor, error) {
	switch v := raw.(type) {
	case nil:
		return Cursor{}, nil
	case Cursor:
		return v, nil
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		var c Cursor
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		return c, nil
	case string:
		decoded, err := base64.URLEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		var c Cursor
		if err := json.Unmarshal(decoded, &c); err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		return c, nil
	case []byte:
		var c Cursor
		if err := json.Unmarshal(v, &c); err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("decode cursor: unsupported cursor type %T", raw)
	}
}
