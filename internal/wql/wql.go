// Package wql implements the wallet query language: a small JSON-encoded
// boolean query AST over record tags, its parser, canonical serializer,
// and a recursive simplifier.
package wql

// Query is the wallet query language AST. Exactly one of the fields
// below is populated for any given node; And/Or/Not are combinators,
// the rest are leaf comparisons against a tag name.
type Query struct {
	And []*Query
	Or  []*Query
	Not *Query

	// Leaf operators. Op is empty for combinator nodes.
	Op    LeafOp
	Name  string
	Value string
	Vals  []string // only populated for OpIn
}

// LeafOp identifies a leaf comparison operator.
type LeafOp string

// Leaf operators, named after the WQL operator keys they round-trip to.
const (
	OpEq  LeafOp = "$eq"
	OpNeq LeafOp = "$neq"
	OpGt  LeafOp = "$gt"
	OpGte LeafOp = "$gte"
	OpLt  LeafOp = "$lt"
	OpLte LeafOp = "$lte"
	OpLike LeafOp = "$like"
	OpIn  LeafOp = "$in"
)

// kind identifies which field of Query is populated.
type kind int

const (
	kindAnd kind = iota
	kindOr
	kindNot
	kindLeaf
)

func (q *Query) kind() kind {
	switch {
	case q.And != nil:
		return kindAnd
	case q.Or != nil:
		return kindOr
	case q.Not != nil:
		return kindNot
	default:
		return kindLeaf
	}
}

// NewAnd builds an And combinator node.
func NewAnd(operands ...*Query) *Query {
	if operands == nil {
		operands = []*Query{}
	}
	return &Query{And: operands}
}

// NewOr builds an Or combinator node.
func NewOr(operands ...*Query) *Query {
	if operands == nil {
		operands = []*Query{}
	}
	return &Query{Or: operands}
}

// NewNot builds a Not combinator node.
func NewNot(inner *Query) *Query {
	return &Query{Not: inner}
}

// NewEq builds an equality leaf.
func NewEq(name, value string) *Query {
	return &Query{Op: OpEq, Name: name, Value: value}
}

// NewLeaf builds a leaf comparison node for any operator other than $in.
func NewLeaf(op LeafOp, name, value string) *Query {
	return &Query{Op: op, Name: name, Value: value}
}

// NewIn builds an $in leaf.
func NewIn(name string, values []string) *Query {
	return &Query{Op: OpIn, Name: name, Vals: values}
}
