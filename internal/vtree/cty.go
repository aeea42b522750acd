package vtree

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// PlainToCty converts a plain nested map/slice/scalar value into a cty.Value
// so trees can be exposed as expression-scope variables.
func PlainToCty(v any) (cty.Value, error) {
	switch c := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(c), nil
	case string:
		return cty.StringVal(c), nil
	case int:
		return cty.NumberIntVal(int64(c)), nil
	case int64:
		return cty.NumberIntVal(c), nil
	case float64:
		return cty.NumberVal(big.NewFloat(c)), nil
	case map[string]any:
		if len(c) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(c))
		for k, e := range c {
			cv, err := PlainToCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("key %q: %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		if len(c) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(c))
		for i, e := range c {
			cv, err := PlainToCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("index %d: %w", i, err)
			}
			elems[i] = cv
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
	}
}

// CtyToPlain converts a cty.Value back into plain nested Go form. Unknown
// and null values both map to nil.
func CtyToPlain(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			pv, err := CtyToPlain(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = pv
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			pv, err := CtyToPlain(v)
			if err != nil {
				return nil, err
			}
			out = append(out, pv)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported cty type for conversion: %s", ty.FriendlyName())
	}
}

// ToCty converts the whole tree into a cty.Value.
func (t *Tree) ToCty() (cty.Value, error) {
	return PlainToCty(t.root)
}

// FromCty builds a tree from a cty.Value.
func FromCty(val cty.Value) (*Tree, error) {
	plain, err := CtyToPlain(val)
	if err != nil {
		return nil, err
	}
	return &Tree{root: plain}, nil
}
