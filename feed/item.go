package feed

import "reflect"

// itemKey looks up key on item, first as a map access, then as an exported
// struct field, matching the Python implementation's
// "item.get(key) falling back to getattr(item, key)" rule used by
// distribution_key, sorting_key and dedup_key (spec.md §3, §4.8).
//
// The second return value is false if the item has neither the map entry
// nor the attribute.
func itemKey(item any, key string) (any, bool) {
	if m, ok := item.(map[string]any); ok {
		v, ok := m[key]
		return v, ok
	}

	v := reflect.ValueOf(item)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	f := v.FieldByName(key)
	if !f.IsValid() || !f.CanInterface() {
		return nil, false
	}
	return f.Interface(), true
}
