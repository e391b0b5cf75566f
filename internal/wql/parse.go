package wql

import (
	"encoding/json"
	"fmt"
)

// Parse decodes a WQL query from its JSON wire form. Two top-level shapes
// are accepted: the canonical JSON object form, and the legacy array form
// (a list of flat restriction objects, treated as an implicit $or with
// null-valued keys dropped from each sub-object).
func Parse(data []byte) (*Query, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding WQL JSON: %w", err)
	}

	switch v := raw.(type) {
	case map[string]any:
		return parseQuery(v)
	case []any:
		return parseLegacyArray(v)
	default:
		return nil, fmt.Errorf("restriction must be a JSON object or array")
	}
}

func parseLegacyArray(array []any) (*Query, error) {
	operands := make([]*Query, 0, len(array))

	for _, elem := range array {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("restriction is invalid: expected object in legacy array")
		}

		filtered := make(map[string]any, len(obj))
		for k, v := range obj {
			if v == nil {
				continue
			}
			filtered[k] = v
		}

		if len(filtered) == 0 {
			continue
		}

		sub, err := parseQuery(filtered)
		if err != nil {
			return nil, err
		}
		operands = append(operands, sub)
	}

	return NewOr(operands...), nil
}

func parseQuery(m map[string]any) (*Query, error) {
	operators := make([]*Query, 0, len(m))

	for key, value := range m {
		op, err := parseOperator(key, value)
		if err != nil {
			return nil, err
		}
		if op != nil {
			operators = append(operators, op)
		}
	}

	if len(operators) == 1 {
		return operators[0], nil
	}
	return NewAnd(operators...), nil
}

// parseOperator parses a single key/value pair from a query object. A nil,
// nil result means the pair was a no-op (an empty $and/$or array) and
// should be dropped silently.
func parseOperator(key string, value any) (*Query, error) {
	switch key {
	case "$and":
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("$and must be array of JSON objects")
		}
		if len(arr) == 0 {
			return nil, nil //nolint:nilnil // empty $and is a deliberate no-op per the legacy wire format
		}
		operands, err := parseListOperators(arr)
		if err != nil {
			return nil, err
		}
		return NewAnd(operands...), nil

	case "$or":
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("$or must be array of JSON objects")
		}
		if len(arr) == 0 {
			return nil, nil //nolint:nilnil // empty $or is a deliberate no-op per the legacy wire format
		}
		operands, err := parseListOperators(arr)
		if err != nil {
			return nil, err
		}
		return NewOr(operands...), nil

	case "$not":
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("$not must be a JSON object")
		}
		inner, err := parseQuery(obj)
		if err != nil {
			return nil, err
		}
		return NewNot(inner), nil

	default:
		switch v := value.(type) {
		case string:
			return NewEq(key, v), nil
		case map[string]any:
			if len(v) != 1 {
				return nil, fmt.Errorf("value for tag %q must be a JSON object of length 1", key)
			}
			var opName string
			var opValue any
			for k, val := range v {
				opName, opValue = k, val
			}
			return parseSingleOperator(opName, key, opValue)
		default:
			return nil, fmt.Errorf("unsupported value for tag %q", key)
		}
	}
}

func parseListOperators(values []any) ([]*Query, error) {
	out := make([]*Query, 0, len(values))

	for _, v := range values {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("operator must be array of JSON objects")
		}
		sub, err := parseQuery(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	return out, nil
}

func parseSingleOperator(opName, key string, value any) (*Query, error) {
	if opName == string(OpIn) {
		arr, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("$in must be used with array of strings")
		}
		vals := make([]string, 0, len(arr))
		for _, v := range arr {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("$in must be used with array of strings")
			}
			vals = append(vals, s)
		}
		return NewIn(key, vals), nil
	}

	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be used with a string", opName)
	}

	switch LeafOp(opName) {
	case OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike:
		return NewLeaf(LeafOp(opName), key, s), nil
	default:
		return nil, fmt.Errorf("unknown operator %q", opName)
	}
}
