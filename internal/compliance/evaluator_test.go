package compliance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regbridge/internal/compliance"
	"regbridge/internal/facts"
	"regbridge/internal/registry"
	"regbridge/internal/rules"
	dErrors "regbridge/pkg/domain-errors"
	"regbridge/pkg/testutil"
)

type denyEngine struct{ reason string }

func (e denyEngine) Evaluate(context.Context, rules.Input) (rules.Verdict, error) {
	return rules.Verdict{Allow: false, Reason: e.reason}, nil
}

type brokenEngine struct{}

func (brokenEngine) Evaluate(context.Context, rules.Input) (rules.Verdict, error) {
	return rules.Verdict{}, errors.New("connection refused")
}

func extract(t *testing.T, sourceAddr string, ops ...xdr.Operation) facts.Facts {
	t.Helper()
	f, err := facts.Extract(sourceAddr, ops)
	require.NoError(t, err)
	return f
}

func TestEvaluateApproved(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	store.SetStatus(dest.Address(), registry.StatusActive)

	e := compliance.NewEvaluator(amount.MustParse("50"), store, rules.Stub{})
	result, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "30"),
	))
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Empty(t, result.Reason)
}

func TestEvaluateLimitExceeded(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	// Registry would fault on lookup; the amount check must short-circuit
	// before any lookup is issued.
	store := registry.NewMemoryStore()

	e := compliance.NewEvaluator(amount.MustParse("50"), store, rules.Stub{})
	result, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "40"),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "20"),
	))
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "50.0000000")
	assert.Contains(t, result.Reason, "60.0000000")
}

func TestEvaluateExactlyAtLimitPasses(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	store.SetStatus(dest.Address(), registry.StatusActive)

	e := compliance.NewEvaluator(amount.MustParse("50"), store, rules.Stub{})
	result, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "50"),
	))
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestEvaluateIneligibleParticipant(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	store.SetStatus(dest.Address(), registry.StatusRevoked)

	e := compliance.NewEvaluator(amount.MustParse("50"), store, rules.Stub{})
	result, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "10"),
	))
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, dest.Address())
	assert.Contains(t, result.Reason, "revoked")
}

func TestEvaluateFirstFailureWins(t *testing.T) {
	source := testutil.NewKeypair(t)
	first := testutil.NewKeypair(t)
	second := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	store.SetStatus(first.Address(), registry.StatusRevoked)
	store.SetStatus(second.Address(), registry.StatusRevoked)

	e := compliance.NewEvaluator(amount.MustParse("50"), store, rules.Stub{})
	result, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", first.Address(), "REG", issuer.Address(), "1"),
		testutil.PaymentOp(t, "", second.Address(), "REG", issuer.Address(), "1"),
	))
	require.NoError(t, err)
	assert.False(t, result.Approved)
	// Both are revoked; the one earlier in the flat list must be named.
	assert.Contains(t, result.Reason, first.Address())
	assert.NotContains(t, result.Reason, second.Address())
}

func TestEvaluateMissingAccountIsFault(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	// dest never registered.

	e := compliance.NewEvaluator(amount.MustParse("50"), store, rules.Stub{})
	_, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "10"),
	))
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))
}

func TestEvaluateRulesEngineDeny(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	store.SetStatus(dest.Address(), registry.StatusActive)

	e := compliance.NewEvaluator(amount.MustParse("50"), store, denyEngine{reason: "sanctions screening hit"})
	result, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "10"),
	))
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, "sanctions screening hit", result.Reason)
}

func TestEvaluateRulesEngineUnavailableIsFault(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	store.SetStatus(dest.Address(), registry.StatusActive)

	e := compliance.NewEvaluator(amount.MustParse("50"), store, brokenEngine{})
	_, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "10"),
	))
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUpstream, dErrors.CodeOf(err))
}

func TestEvaluateNilEngineSkipsGate(t *testing.T) {
	source := testutil.NewKeypair(t)
	dest := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.SetStatus(source.Address(), registry.StatusActive)
	store.SetStatus(dest.Address(), registry.StatusActive)

	e := compliance.NewEvaluator(amount.MustParse("50"), store, nil)
	result, err := e.Evaluate(t.Context(), extract(t, source.Address(),
		testutil.PaymentOp(t, "", dest.Address(), "REG", issuer.Address(), "10"),
	))
	require.NoError(t, err)
	assert.True(t, result.Approved)
}
