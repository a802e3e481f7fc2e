package materialize

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

// Built-in type tags.
const (
	TagJSON = "json"
	TagYAML = "yaml"
	TagText = "text"
)

func registerBuiltins(r *Registry) {
	// Registration of builtins cannot collide in a fresh registry.
	_ = r.Register(TagJSON, saveJSON, loadJSON)
	_ = r.Register(TagYAML, saveYAML, loadYAML)
	_ = r.Register(TagText, saveText, loadText)
}

func saveJSON(v cty.Value) ([]byte, error) {
	data, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, fmt.Errorf("json materializer: %w", err)
	}
	return data, nil
}

func loadJSON(data []byte) (cty.Value, error) {
	ty, err := ctyjson.ImpliedType(data)
	if err != nil {
		return cty.NilVal, fmt.Errorf("json materializer: %w", err)
	}
	v, err := ctyjson.Unmarshal(data, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("json materializer: %w", err)
	}
	return v, nil
}

func saveYAML(v cty.Value) ([]byte, error) {
	plain, err := ctyToGo(v)
	if err != nil {
		return nil, fmt.Errorf("yaml materializer: %w", err)
	}
	data, err := yaml.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("yaml materializer: %w", err)
	}
	return data, nil
}

func loadYAML(data []byte) (cty.Value, error) {
	var plain any
	if err := yaml.Unmarshal(data, &plain); err != nil {
		return cty.NilVal, fmt.Errorf("yaml materializer: %w", err)
	}
	v, err := goToCty(plain)
	if err != nil {
		return cty.NilVal, fmt.Errorf("yaml materializer: %w", err)
	}
	return v, nil
}

func saveText(v cty.Value) ([]byte, error) {
	if v.Type() != cty.String || v.IsNull() {
		return nil, fmt.Errorf("text materializer requires a non-null string, got %s", v.Type().FriendlyName())
	}
	return []byte(v.AsString()), nil
}

func loadText(data []byte) (cty.Value, error) {
	return cty.StringVal(string(data)), nil
}

// ctyToGo converts a cty value into plain Go values for YAML encoding.
func ctyToGo(v cty.Value) (any, error) {
	if !v.IsKnown() {
		return nil, fmt.Errorf("unknown value cannot be materialized")
	}
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			conv, err := ctyToGo(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			conv, err := ctyToGo(elem)
			if err != nil {
				return nil, err
			}
			out[key.AsString()] = conv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
}

// goToCty converts decoded YAML values back into cty values.
func goToCty(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case float64:
		return cty.NumberVal(big.NewFloat(val)), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, elem := range val {
			conv, err := goToCty(elem)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = conv
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal, nil
		}
		fields := make(map[string]cty.Value, len(val))
		for key, elem := range val {
			conv, err := goToCty(elem)
			if err != nil {
				return cty.NilVal, err
			}
			fields[key] = conv
		}
		return cty.ObjectVal(fields), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported decoded type %T", v)
}
