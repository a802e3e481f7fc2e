package fingerprint

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/zclconf/go-cty/cty"
)

// canonicalJSON marshals with sorted map keys so the same value always
// encodes to the same bytes.
var canonicalJSON = sonic.Config{SortMapKeys: true}.Froze()

// ErrNoCanonicalForm reports a value that has no unambiguous,
// order-independent canonical form. Callers recover by disabling caching
// for the affected step, never by failing the run.
type ErrNoCanonicalForm struct {
	Type string
}

func (e *ErrNoCanonicalForm) Error() string {
	return fmt.Sprintf("value of type %s has no canonical form", e.Type)
}

// Canonical converts a cty value into a plain Go value whose canonical JSON
// encoding is deterministic and order-independent. Only numbers, strings,
// booleans and nested containers thereof are eligible.
func Canonical(val cty.Value) (any, error) {
	if !val.IsKnown() {
		return nil, &ErrNoCanonicalForm{Type: "unknown"}
	}
	if val.IsNull() {
		return nil, nil
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		// Full decimal expansion keeps the text stable regardless of
		// how the number was written.
		return json.Number(val.AsBigFloat().Text('f', -1)), nil
	case ty == cty.Bool:
		return val.True(), nil

	case ty.IsListType() || ty.IsTupleType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			conv, err := Canonical(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil

	case ty.IsSetType():
		// Sets are unordered; sort elements by their encoded form to
		// make the result order-independent.
		encoded := make([]string, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			conv, err := Canonical(elem)
			if err != nil {
				return nil, err
			}
			buf, err := canonicalJSON.Marshal(conv)
			if err != nil {
				return nil, fmt.Errorf("encoding set element: %w", err)
			}
			encoded = append(encoded, string(buf))
		}
		sort.Strings(encoded)
		out := make([]any, len(encoded))
		for i, raw := range encoded {
			out[i] = json.RawMessage(raw)
		}
		return out, nil

	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			conv, err := Canonical(elem)
			if err != nil {
				return nil, err
			}
			out[key.AsString()] = conv
		}
		return out, nil
	}

	return nil, &ErrNoCanonicalForm{Type: ty.FriendlyName()}
}

// encodeCanonical canonicalizes a map of named cty values and returns the
// deterministic JSON bytes.
func encodeCanonical(values map[string]cty.Value) ([]byte, error) {
	out := make(map[string]any, len(values))
	for name, val := range values {
		conv, err := Canonical(val)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", name, err)
		}
		out[name] = conv
	}
	return canonicalJSON.Marshal(out)
}
