package storage

import (
	"strconv"
	"strings"

	"github.com/mrz1836/vaultdb/internal/wql"
)

// Matches reports whether item's tags satisfy query. A nil query
// matches everything, mirroring the "no restriction" search case.
// Backends share this implementation so that in-memory and on-disk
// stores evaluate identical semantics; it is the reference evaluator
// every Backend.Search implementation should delegate to.
func Matches(item Item, query *wql.Query) bool {
	if query == nil {
		return true
	}
	return evalNode(item, query)
}

func evalNode(item Item, q *wql.Query) bool {
	switch {
	case q.And != nil:
		for _, sub := range q.And {
			if !evalNode(item, sub) {
				return false
			}
		}
		return true

	case q.Or != nil:
		if len(q.Or) == 0 {
			return false
		}
		for _, sub := range q.Or {
			if evalNode(item, sub) {
				return true
			}
		}
		return false

	case q.Not != nil:
		return !evalNode(item, q.Not)

	default:
		return evalLeaf(item, q)
	}
}

func evalLeaf(item Item, q *wql.Query) bool {
	values := tagValues(item, q.Name)
	if len(values) == 0 {
		return false
	}

	switch q.Op {
	case wql.OpEq:
		return contains(values, q.Value)
	case wql.OpNeq:
		return !contains(values, q.Value)
	case wql.OpIn:
		for _, v := range values {
			if contains(q.Vals, v) {
				return true
			}
		}
		return false
	case wql.OpLike:
		for _, v := range values {
			if likeMatch(q.Value, v) {
				return true
			}
		}
		return false
	case wql.OpGt, wql.OpGte, wql.OpLt, wql.OpLte:
		for _, v := range values {
			if compareMatch(q.Op, v, q.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func tagValues(item Item, name string) []string {
	var out []string
	for _, tag := range item.Tags {
		if tag.Name == name {
			out = append(out, tag.Value)
		}
	}
	return out
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// compareMatch attempts a numeric comparison first (tag values storing
// integers, as Indy-style restrictions commonly do), falling back to
// lexicographic string comparison.
func compareMatch(op wql.LeafOp, left, right string) bool {
	leftNum, leftErr := strconv.ParseFloat(left, 64)
	rightNum, rightErr := strconv.ParseFloat(right, 64)

	var cmp int
	if leftErr == nil && rightErr == nil {
		switch {
		case leftNum < rightNum:
			cmp = -1
		case leftNum > rightNum:
			cmp = 1
		default:
			cmp = 0
		}
	} else {
		cmp = strings.Compare(left, right)
	}

	switch op {
	case wql.OpGt:
		return cmp > 0
	case wql.OpGte:
		return cmp >= 0
	case wql.OpLt:
		return cmp < 0
	case wql.OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// likeMatch implements SQL LIKE semantics restricted to the "%"
// wildcard (any run of characters); "_" is treated as a literal since
// tag values rarely need single-character wildcards and the simpler
// rule keeps the matcher predictable.
func likeMatch(pattern, value string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return pattern == value
	}

	rest := value
	for i, part := range parts {
		switch {
		case i == 0:
			if !strings.HasPrefix(rest, part) {
				return false
			}
			rest = rest[len(part):]
		case i == len(parts)-1:
			return strings.HasSuffix(rest, part)
		case part == "":
			continue
		default:
			idx := strings.Index(rest, part)
			if idx < 0 {
				return false
			}
			rest = rest[idx+len(part):]
		}
	}
	return true
}
