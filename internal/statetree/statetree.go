// Package statetree implements the nested state tree the engine renders
// from: dotted-path resolution, path writes, deep merge, and the value
// coercions shared by directives and bindings.
//
// Trees are plain map[string]any with string, bool, and numeric leaves,
// []any sequences, and nested map[string]any branches. The package never
// retains references into caller data; copy helpers are provided so
// owners can enforce that at their boundaries.
package statetree

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolve walks root along a dotted path and returns the value it finds.
// The boolean is false when any segment is missing or a non-map value is
// reached before the final segment. Resolution is a pure lookup: no
// method calls, no sequence indexing.
func Resolve(root map[string]any, path string) (any, bool) {
	if root == nil || path == "" {
		return nil, false
	}
	var current any = root
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set writes value at the dotted path, creating intermediate maps as it
// descends. An intermediate that exists but is not a map is replaced
// with a fresh map, so the previous value at that segment is lost.
// Callers that need to surface that overwrite should check with Resolve
// first.
func Set(root map[string]any, path string, value any) {
	if root == nil || path == "" {
		return
	}
	segments := strings.Split(path, ".")
	current := root
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// Merge deep-merges patch into dst. Map values merge recursively; every
// other value, sequences included, replaces the existing entry
// wholesale. Patch values are stored as given, so callers that must not
// alias the patch should pass a copy (see DeepCopy).
func Merge(dst, patch map[string]any) {
	for key, value := range patch {
		pm, ok := value.(map[string]any)
		if !ok {
			dst[key] = value
			continue
		}
		dm, ok := dst[key].(map[string]any)
		if !ok {
			dm = make(map[string]any, len(pm))
			dst[key] = dm
		}
		Merge(dm, pm)
	}
}

// DeepCopy returns a copy of src that shares no mutable structure with
// it.
func DeepCopy(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = CopyValue(value)
	}
	return out
}

// CopyValue copies nested maps and sequences; other values are returned
// unchanged.
func CopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return DeepCopy(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = CopyValue(elem)
		}
		return out
	default:
		return value
	}
}

// Truthy reports whether a resolved value selects the positive branch of
// a conditional. Nil, false, zero numbers, empty strings, and empty
// sequences and maps are falsy; everything else is truthy.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// Text renders a resolved value as substitution text. Nil renders empty.
// Floats print in decimal notation with the shortest exact form, so
// JSON-decoded integers come out as "1" rather than "1e+00".
func Text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Leaves returns the dotted path of every leaf in patch. A nested empty
// map counts as a leaf so that merging one still registers as a touch of
// its path. Order is unspecified.
func Leaves(patch map[string]any) []string {
	var out []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for key, value := range m {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			if child, ok := value.(map[string]any); ok && len(child) > 0 {
				walk(path, child)
				continue
			}
			out = append(out, path)
		}
	}
	walk("", patch)
	return out
}

// Related reports whether one dotted path is a segment prefix of the
// other. "user" and "user.name" are related; "user" and "username" are
// not. A write to either of two related paths can change what the other
// resolves to.
func Related(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	return strings.HasPrefix(a, b) && a[len(b)] == '.'
}
