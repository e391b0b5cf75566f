package wql

import "encoding/json"

// ToJSON renders the query in its canonical wire form: leaf equality
// collapses to {tag: value}, other leaf operators to {tag: {op: value}},
// combinators to {"$and"/"$or": [...]} or {"$not": {...}}. Empty And/Or
// render as {}.
func (q *Query) ToJSON() ([]byte, error) {
	return json.Marshal(q.toValue())
}

func (q *Query) toValue() any {
	switch q.kind() {
	case kindAnd:
		if len(q.And) == 0 {
			return map[string]any{}
		}
		operands := make([]any, len(q.And))
		for i, sub := range q.And {
			operands[i] = sub.toValue()
		}
		return map[string]any{"$and": operands}

	case kindOr:
		if len(q.Or) == 0 {
			return map[string]any{}
		}
		operands := make([]any, len(q.Or))
		for i, sub := range q.Or {
			operands[i] = sub.toValue()
		}
		return map[string]any{"$or": operands}

	case kindNot:
		return map[string]any{"$not": q.Not.toValue()}

	default: // kindLeaf
		switch q.Op {
		case OpEq:
			return map[string]any{q.Name: q.Value}
		case OpIn:
			return map[string]any{q.Name: map[string]any{string(OpIn): q.Vals}}
		default:
			return map[string]any{q.Name: map[string]any{string(q.Op): q.Value}}
		}
	}
}
