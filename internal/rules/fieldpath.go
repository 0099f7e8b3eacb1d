// internal/rules/fieldpath.go
package rules

import (
	"strconv"

	"github.com/solatis/condfields/internal/types"
)

/*
 * Value path resolution for submitted form values.
 *
 * A path is the list of keys from the values root to a field's value
 * ("body", "0", "value"). Lists are addressed by decimal index, maps by key.
 *
 * Key functions:
 *   - LookupValue: reads the value at a path
 *   - SetValue: replaces the value at an existing parent location
 *   - DeleteValue: removes the value at a path
 *
 * Mutating functions work in place: the Validation Guard deep-copies the
 * submission before calling them.
 */

// LookupValue returns the value at path. An empty path returns data itself.
func LookupValue(data any, path []string) (any, bool) {
	cur := data
	for _, seg := range path {
		next, ok := element(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// parentOf resolves the container holding the last path segment.
func parentOf(data any, path []string) (any, string, error) {
	if len(path) == 0 {
		return nil, "", types.ErrPathNotFound
	}
	parent, ok := LookupValue(data, path[:len(path)-1])
	if !ok || !isIndexed(parent) {
		return nil, "", types.ErrPathNotFound
	}
	return parent, path[len(path)-1], nil
}

// SetValue stores v at path. The parent location must already exist.
func SetValue(data any, path []string, v any) error {
	parent, key, err := parentOf(data, path)
	if err != nil {
		return err
	}
	switch p := parent.(type) {
	case map[string]any:
		p[key] = v
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(p) {
			return types.ErrPathNotFound
		}
		p[i] = v
	}
	return nil
}

// DeleteValue removes the value at path. List entries are set to nil so
// sibling indices stay stable. Returns false when nothing was there.
func DeleteValue(data any, path []string) bool {
	parent, key, err := parentOf(data, path)
	if err != nil {
		return false
	}
	switch p := parent.(type) {
	case map[string]any:
		if _, ok := p[key]; !ok {
			return false
		}
		delete(p, key)
		return true
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(p) {
			return false
		}
		p[i] = nil
		return true
	}
	return false
}
