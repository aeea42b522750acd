// Package vtree implements the hierarchical value document that flows
// between graph nodes. A tree is a JSON-like structure of nested objects,
// arrays and scalars, addressed by dotted paths.
package vtree

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrTypeMismatch is returned when a Set traverses an existing value that is
// not an object.
var ErrTypeMismatch = fmt.Errorf("path traverses a non-object value")

// Tree is a mutable JSON-like document. The zero value is not usable; use
// New or FromPlain.
//
// A Tree owns its contents: Merge and Clone deep-copy incoming data, so two
// trees never alias the same nested containers. This matters because nodes
// mutate their own result trees in place while downstream consumers hold
// merged copies.
type Tree struct {
	root any
}

// New returns an empty object tree.
func New() *Tree {
	return &Tree{root: map[string]any{}}
}

// FromPlain wraps a plain nested map/slice/scalar value in a Tree. The value
// is deep-copied.
func FromPlain(v any) *Tree {
	return &Tree{root: deepCopy(v)}
}

// ToPlain converts the tree to plain nested map/slice/scalar form. The
// returned value is a deep copy; mutating it does not affect the tree.
func (t *Tree) ToPlain() any {
	return deepCopy(t.root)
}

// Clone returns an independent deep copy of the tree.
func (t *Tree) Clone() *Tree {
	return &Tree{root: deepCopy(t.root)}
}

// Get retrieves the value at a dotted path. The second return value is false
// when the path is absent; Get never fails. Numeric path segments index into
// arrays.
func (t *Tree) Get(path string) (any, bool) {
	cur := t.root
	if path == "" {
		return deepCopy(cur), true
	}
	for _, seg := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}
	return deepCopy(cur), true
}

// Set writes a value at a dotted path, creating intermediate objects as
// needed. Traversing an existing non-object value fails with
// ErrTypeMismatch. The value is deep-copied before insertion.
func (t *Tree) Set(path string, v any) error {
	if path == "" {
		t.root = deepCopy(v)
		return nil
	}
	obj, ok := t.root.(map[string]any)
	if !ok {
		return fmt.Errorf("set %q: root: %w", path, ErrTypeMismatch)
	}
	segs := strings.Split(path, ".")
	for i, seg := range segs[:len(segs)-1] {
		next, exists := obj[seg]
		if !exists {
			child := map[string]any{}
			obj[seg] = child
			obj = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("set %q: at %q: %w", path, strings.Join(segs[:i+1], "."), ErrTypeMismatch)
		}
		obj = child
	}
	obj[segs[len(segs)-1]] = deepCopy(v)
	return nil
}

// Merge merges another tree into this one. Object keys are unioned
// recursively with the other tree winning on conflicts; arrays and scalars
// are replaced wholesale, never concatenated. The other tree is not
// modified.
func (t *Tree) Merge(other *Tree) {
	if other == nil {
		return
	}
	t.root = mergeValues(t.root, other.root)
}

// IsEmpty reports whether the tree is an object with no keys.
func (t *Tree) IsEmpty() bool {
	obj, ok := t.root.(map[string]any)
	return ok && len(obj) == 0
}

func mergeValues(left, right any) any {
	lo, lok := left.(map[string]any)
	ro, rok := right.(map[string]any)
	if !lok || !rok {
		return deepCopy(right)
	}
	for k, rv := range ro {
		if lv, exists := lo[k]; exists {
			lo[k] = mergeValues(lv, rv)
		} else {
			lo[k] = deepCopy(rv)
		}
	}
	return lo
}

func deepCopy(v any) any {
	switch c := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(c))
		for k, e := range c {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(c))
		for i, e := range c {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
