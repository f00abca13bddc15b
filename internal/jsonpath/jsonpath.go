// Package jsonpath implements the dot-separated path walk shared by the
// configuration manager's Get/SetValue accessors and the filter engine's
// json_path retain-rewrite rule.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Get walks path (dot-separated segments, e.g. "mqtt.host" or "items.0.id")
// through v, which must be built from map[string]interface{}, []interface{}
// and scalar leaves — the shape produced by yaml.Unmarshal or json.Unmarshal
// into interface{}. A numeric segment indexes into a slice; any other
// segment looks up a map key. Returns ok=false on a missing key, an
// out-of-range index, or a segment applied to a non-container value.
func Get(v interface{}, path string) (interface{}, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set walks path through m (which must be a map[string]interface{} tree),
// creating intermediate maps as needed, and assigns value at the leaf.
// Set does not create or index into slices: a numeric segment encountered
// before the final one is an error, since the filter/config trees this is
// used on are object-shaped, not arrays of objects.
func Set(m map[string]interface{}, path string, value interface{}) error {
	segs := strings.Split(path, ".")
	if len(segs) == 0 || segs[0] == "" {
		return fmt.Errorf("jsonpath: empty path")
	}
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok {
			child := make(map[string]interface{})
			cur[seg] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("jsonpath: segment %q is not an object", seg)
		}
		cur = child
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// GetInt walks path through v and coerces the leaf to an int64, the shape
// the filter engine's json_path retain-rewrite rule needs: JSON numbers
// decode as float64, so an exact-integer float is accepted.
func GetInt(v interface{}, path string) (int64, bool) {
	leaf, ok := Get(v, path)
	if !ok {
		return 0, false
	}
	switch n := leaf.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
