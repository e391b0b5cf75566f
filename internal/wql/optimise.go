package wql

// Optimise simplifies the query tree: chained double negation collapses
// recursively, empty And/Or branches vanish, single-child And/Or
// collapse to their child, and a single-value $in collapses to $eq.
//
// Unlike a single-pass simplifier, Optimise descends into every
// combinator's children (including through Not) so that simplification
// opportunities introduced by one rewrite are picked up by another in
// the same pass.
func (q *Query) Optimise() *Query {
	optimised, ok := q.optimise()
	if !ok {
		return NewAnd()
	}
	return optimised
}

// optimise returns (nil, false) when the node is vacuous
// (an empty And/Or nested inside a larger combinator) and should be
// dropped by its parent.
func (q *Query) optimise() (*Query, bool) {
	switch q.kind() {
	case kindNot:
		inner, ok := q.Not.optimise()
		if !ok {
			return NewNot(NewAnd()), true
		}
		if inner.kind() == kindNot {
			// Chained double negation: Not(Not(x)) == x, applied recursively.
			return inner.Not.optimise()
		}
		return NewNot(inner), true

	case kindAnd:
		return optimiseCombinator(q.And, true)

	case kindOr:
		return optimiseCombinator(q.Or, false)

	default: // kindLeaf
		if q.Op == OpIn && len(q.Vals) == 1 {
			return NewEq(q.Name, q.Vals[0]), true
		}
		return q, true
	}
}

func optimiseCombinator(operands []*Query, isAnd bool) (*Query, bool) {
	if len(operands) == 0 {
		return nil, false
	}
	if len(operands) == 1 {
		return operands[0].optimise()
	}

	merged := make([]*Query, 0, len(operands))
	for _, op := range operands {
		if opt, ok := op.optimise(); ok {
			merged = append(merged, opt)
		}
	}

	switch len(merged) {
	case 0:
		return nil, false
	case 1:
		return merged[0], true
	default:
		if isAnd {
			return NewAnd(merged...), true
		}
		return NewOr(merged...), true
	}
}
