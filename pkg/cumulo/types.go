package cumulo

import (
	"sort"
	"time"

	"github.com/spf13/cast"
)

// AttributeTree is the generic decoded form of an API response: a nested
// mapping of snake_case attribute names to scalars, sub-trees and sequences.
// Query-protocol (XML) responses carry every scalar as a string; JSON
// responses keep native types. The typed accessors coerce either form.
type AttributeTree map[string]interface{}

// Lookup returns the raw value for name and whether it is present.
func (t AttributeTree) Lookup(name string) (interface{}, bool) {
	if t == nil {
		return nil, false
	}

	value, ok := t[name]

	return value, ok
}

// Has reports whether name is present in the tree.
func (t AttributeTree) Has(name string) bool {
	_, ok := t.Lookup(name)

	return ok
}

// Keys returns the attribute names in sorted order.
func (t AttributeTree) Keys() []string {
	keys := make([]string, 0, len(t))

	for key := range t {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// String returns the value for name coerced to a string, or "" when absent.
func (t AttributeTree) String(name string) string {
	value, ok := t.Lookup(name)
	if !ok {
		return ""
	}

	return cast.ToString(value)
}

// Int returns the value for name coerced to an int, or 0 when absent or not
// numeric.
func (t AttributeTree) Int(name string) int {
	value, ok := t.Lookup(name)
	if !ok {
		return 0
	}

	return cast.ToInt(value)
}

// Int64 returns the value for name coerced to an int64.
func (t AttributeTree) Int64(name string) int64 {
	value, ok := t.Lookup(name)
	if !ok {
		return 0
	}

	return cast.ToInt64(value)
}

// Float64 returns the value for name coerced to a float64.
func (t AttributeTree) Float64(name string) float64 {
	value, ok := t.Lookup(name)
	if !ok {
		return 0
	}

	return cast.ToFloat64(value)
}

// Bool returns the value for name coerced to a bool. XML "true"/"false"
// strings coerce cleanly.
func (t AttributeTree) Bool(name string) bool {
	value, ok := t.Lookup(name)
	if !ok {
		return false
	}

	return cast.ToBool(value)
}

// Time returns the value for name coerced to a time.Time. Zero when absent
// or unparseable.
func (t AttributeTree) Time(name string) time.Time {
	value, ok := t.Lookup(name)
	if !ok {
		return time.Time{}
	}

	parsed, err := cast.ToTimeE(value)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

// Strings returns the value for name coerced to a string slice. A scalar
// becomes a one-element slice; absent yields nil.
func (t AttributeTree) Strings(name string) []string {
	value, ok := t.Lookup(name)
	if !ok {
		return nil
	}

	return cast.ToStringSlice(value)
}

// Tree returns the sub-tree under name, or nil when absent or not a mapping.
func (t AttributeTree) Tree(name string) AttributeTree {
	value, ok := t.Lookup(name)
	if !ok {
		return nil
	}

	return toTree(value)
}

// Trees returns the sequence of sub-trees under name. A single mapping
// becomes a one-element slice, matching how the query protocol flattens a
// one-item set.
func (t AttributeTree) Trees(name string) []AttributeTree {
	value, ok := t.Lookup(name)
	if !ok {
		return nil
	}

	switch typed := value.(type) {
	case []AttributeTree:
		return typed
	case []interface{}:
		trees := make([]AttributeTree, 0, len(typed))

		for _, item := range typed {
			if tree := toTree(item); tree != nil {
				trees = append(trees, tree)
			}
		}

		return trees
	default:
		if tree := toTree(value); tree != nil {
			return []AttributeTree{tree}
		}

		return nil
	}
}

func toTree(value interface{}) AttributeTree {
	switch typed := value.(type) {
	case AttributeTree:
		return typed
	case map[string]interface{}:
		return AttributeTree(typed)
	default:
		return nil
	}
}
