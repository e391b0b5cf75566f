package restriction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vaultdb/internal/restriction"
	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

func sampleFields() restriction.Fields {
	return restriction.Fields{
		SchemaID:        "schema:1",
		SchemaIssuerDID: "did:issuer",
		SchemaName:      "degree",
		SchemaVersion:   "1.0",
		CredDefID:       "creddef:1",
		IssuerDID:       "did:issuer",
	}
}

func TestEvaluate_EqMatches(t *testing.T) {
	q := wql.NewEq("schema_name", "degree")
	require.NoError(t, restriction.Evaluate(q, sampleFields()))
}

func TestEvaluate_EqMismatchRejected(t *testing.T) {
	q := wql.NewEq("schema_name", "other")
	err := restriction.Evaluate(q, sampleFields())
	require.Error(t, err)
	assert.Equal(t, "PROOF_REJECTED", vaulterr.Code(err))
}

func TestEvaluate_NeqMatches(t *testing.T) {
	q := wql.NewLeaf(wql.OpNeq, "schema_name", "other")
	require.NoError(t, restriction.Evaluate(q, sampleFields()))
}

func TestEvaluate_InSucceedsOnAnyMatch(t *testing.T) {
	q := wql.NewIn("cred_def_id", []string{"creddef:9", "creddef:1"})
	require.NoError(t, restriction.Evaluate(q, sampleFields()))
}

func TestEvaluate_InFailsWhenNoneMatch(t *testing.T) {
	q := wql.NewIn("cred_def_id", []string{"creddef:9"})
	err := restriction.Evaluate(q, sampleFields())
	require.Error(t, err)
	assert.Equal(t, "PROOF_REJECTED", vaulterr.Code(err))
}

func TestEvaluate_AndRequiresAllChildren(t *testing.T) {
	q := wql.NewAnd(
		wql.NewEq("schema_name", "degree"),
		wql.NewEq("issuer_did", "did:issuer"),
	)
	require.NoError(t, restriction.Evaluate(q, sampleFields()))

	q = wql.NewAnd(
		wql.NewEq("schema_name", "degree"),
		wql.NewEq("issuer_did", "did:other"),
	)
	require.Error(t, restriction.Evaluate(q, sampleFields()))
}

func TestEvaluate_OrRequiresAnyChild(t *testing.T) {
	q := wql.NewOr(
		wql.NewEq("schema_name", "wrong"),
		wql.NewEq("issuer_did", "did:issuer"),
	)
	require.NoError(t, restriction.Evaluate(q, sampleFields()))
}

func TestEvaluate_NotInvertsChild(t *testing.T) {
	q := wql.NewNot(wql.NewEq("schema_name", "wrong"))
	require.NoError(t, restriction.Evaluate(q, sampleFields()))

	q = wql.NewNot(wql.NewEq("schema_name", "degree"))
	require.Error(t, restriction.Evaluate(q, sampleFields()))
}

func TestEvaluate_AttributeMarkerAlwaysSucceeds(t *testing.T) {
	q := wql.NewEq("attr::degree::marker", "ignored")
	require.NoError(t, restriction.Evaluate(q, sampleFields()))
}

func TestEvaluate_UnknownFieldIsStructuralError(t *testing.T) {
	q := wql.NewEq("not_a_real_field", "x")
	err := restriction.Evaluate(q, sampleFields())
	require.Error(t, err)
	assert.Equal(t, "INVALID_STRUCTURE", vaulterr.Code(err))
}

func TestEvaluate_RangeOperatorRejected(t *testing.T) {
	q := wql.NewLeaf(wql.OpGte, "schema_version", "1.0")
	err := restriction.Evaluate(q, sampleFields())
	require.Error(t, err)
	assert.Equal(t, "PROOF_REJECTED", vaulterr.Code(err))
}

func TestEvaluate_LikeOperatorRejected(t *testing.T) {
	q := wql.NewLeaf(wql.OpLike, "schema_name", "deg%")
	err := restriction.Evaluate(q, sampleFields())
	require.Error(t, err)
	assert.Equal(t, "PROOF_REJECTED", vaulterr.Code(err))
}

func TestEvaluate_NestedCombinators(t *testing.T) {
	q := wql.NewAnd(
		wql.NewOr(
			wql.NewEq("schema_name", "wrong"),
			wql.NewEq("schema_id", "schema:1"),
		),
		wql.NewNot(wql.NewEq("cred_def_id", "creddef:9")),
	)
	require.NoError(t, restriction.Evaluate(q, sampleFields()))
}
