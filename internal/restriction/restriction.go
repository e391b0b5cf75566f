// Package restriction evaluates a parsed query tree against the fixed
// set of credential-identity fields used at proof time, independent of
// any wallet or storage backend.
package restriction

import (
	"strings"

	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

// Fields are the six identity strings a restriction tree is evaluated
// against. Any tag name outside this set is rejected unless it matches
// the attribute-presence marker pattern.
type Fields struct {
	SchemaID       string
	SchemaIssuerDID string
	SchemaName     string
	SchemaVersion  string
	CredDefID      string
	IssuerDID      string
}

const (
	markerPrefix = "attr::"
	markerSuffix = "::marker"
)

func (f Fields) lookup(name string) (string, bool) {
	switch name {
	case "schema_id":
		return f.SchemaID, true
	case "schema_issuer_did":
		return f.SchemaIssuerDID, true
	case "schema_name":
		return f.SchemaName, true
	case "schema_version":
		return f.SchemaVersion, true
	case "cred_def_id":
		return f.CredDefID, true
	case "issuer_did":
		return f.IssuerDID, true
	default:
		return "", false
	}
}

func isMarker(name string) bool {
	return strings.HasPrefix(name, markerPrefix) && strings.HasSuffix(name, markerSuffix)
}

// Evaluate reports whether q is satisfied by fields. An unknown field
// is a structural problem reported as ErrInvalidStructure; an ordinary
// failed match, and any range or $like operator (not applicable to
// these fields), is reported as ErrProofRejected.
func Evaluate(q *wql.Query, fields Fields) error {
	matched, err := evalNode(q, fields)
	if err != nil {
		return err
	}
	if !matched {
		return vaulterr.ErrProofRejected
	}
	return nil
}

func evalNode(q *wql.Query, fields Fields) (bool, error) {
	switch {
	case q.And != nil:
		for _, child := range q.And {
			ok, err := evalNode(child, fields)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case q.Or != nil:
		for _, child := range q.Or {
			ok, err := evalNode(child, fields)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case q.Not != nil:
		ok, err := evalNode(q.Not, fields)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return evalLeaf(q, fields)
	}
}

func evalLeaf(q *wql.Query, fields Fields) (bool, error) {
	switch q.Op {
	case wql.OpEq:
		return evalEquality(q.Name, q.Value, fields)
	case wql.OpNeq:
		ok, err := evalEquality(q.Name, q.Value, fields)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case wql.OpIn:
		value, ok := fields.lookup(q.Name)
		if !ok {
			if isMarker(q.Name) {
				return true, nil
			}
			return false, structuralError(q.Name, "")
		}
		for _, candidate := range q.Vals {
			if candidate == value {
				return true, nil
			}
		}
		return false, nil
	case wql.OpGt, wql.OpGte, wql.OpLt, wql.OpLte, wql.OpLike:
		return false, vaulterr.WithDetails(vaulterr.ErrProofRejected, map[string]string{
			"tag_name": q.Name,
			"reason":   "range and like operators are not applicable to restriction fields",
		})
	default:
		return false, structuralError(q.Name, q.Value)
	}
}

func evalEquality(name, value string, fields Fields) (bool, error) {
	field, ok := fields.lookup(name)
	if !ok {
		if isMarker(name) {
			return true, nil
		}
		return false, structuralError(name, value)
	}
	return field == value, nil
}

func structuralError(name, value string) error {
	return vaulterr.WithDetails(vaulterr.ErrInvalidStructure, map[string]string{
		"tag_name":  name,
		"tag_value": value,
		"reason":    "unknown restriction field",
	})
}
