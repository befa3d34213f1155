package mapping

import (
	"strconv"
	"strings"

	"github.com/c360/i3xbridge/types"
)

// Resolve evaluates a minimal dot-path expression against a decoded
// value: optional leading "$.", dot-separated keys, and "name[index]"
// for list indexing. Any type mismatch along the way returns
// (null, false). No wildcards, filters, or recursive descent.
func Resolve(value types.Value, path string) (types.Value, bool) {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return value, true
	}

	current := value
	for _, segment := range strings.Split(path, ".") {
		key, index, indexed, ok := parseSegment(segment)
		if !ok {
			return types.Null(), false
		}
		if key != "" {
			next, found := current.Get(key)
			if !found {
				return types.Null(), false
			}
			current = next
		}
		if indexed {
			next, found := current.Index(index)
			if !found {
				return types.Null(), false
			}
			current = next
		}
	}
	return current, true
}

// parseSegment splits "name[3]" into its key and index parts. A bare
// "[3]" indexes the current value directly.
func parseSegment(segment string) (key string, index int, indexed bool, ok bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		if segment == "" {
			return "", 0, false, false
		}
		return segment, 0, false, true
	}
	if !strings.HasSuffix(segment, "]") {
		return "", 0, false, false
	}
	idx, err := strconv.Atoi(segment[open+1 : len(segment)-1])
	if err != nil || idx < 0 {
		return "", 0, false, false
	}
	return segment[:open], idx, true, true
}
