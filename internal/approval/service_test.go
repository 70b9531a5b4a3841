package approval_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"regbridge/internal/approval"
	"regbridge/internal/audit"
	"regbridge/internal/compliance"
	"regbridge/internal/envelope"
	"regbridge/internal/ledger"
	"regbridge/internal/registry"
	"regbridge/internal/rules"
	"regbridge/internal/sandwich"
	dErrors "regbridge/pkg/domain-errors"
	"regbridge/pkg/requestcontext"
	"regbridge/pkg/testutil"
)

type fixture struct {
	service *approval.Service
	source  *keypair.Full
	issuer  *keypair.Full
	store   *registry.MemoryStore
	audits  *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	source := testutil.NewKeypair(t)
	issuer := testutil.NewKeypair(t)

	store := registry.NewMemoryStore()
	store.Put(registry.Account{AccountID: source.Address(), Status: registry.StatusActive})

	limit := xdr.Int64(500_000_000) // 50 units
	evaluator := compliance.NewEvaluator(limit, store, rules.Stub{})

	audits := audit.NewMemoryStore()

	svc := approval.NewService(
		evaluator,
		ledger.StaticClient{Sequence: 41, Fee: 250},
		sandwich.New(issuer, network.TestNetworkPassphrase, 300*time.Second),
		audit.NewPublisher(audits),
		slog.New(slog.DiscardHandler),
		nil,
	)
	return &fixture{service: svc, source: source, issuer: issuer, store: store, audits: audits}
}

func (fx *fixture) enroll(addr string) {
	fx.store.Put(registry.Account{AccountID: addr, Status: registry.StatusActive})
}

func TestApproveRevisesCompliantPayment(t *testing.T) {
	fx := newFixture(t)
	dest := testutil.NewKeypair(t)
	fx.enroll(dest.Address())

	payment := testutil.PaymentOp(t, "", dest.Address(), "REG", fx.issuer.Address(), "30")
	env := testutil.Envelope(t, fx.source.Address(), 41, payment)

	ctx := requestcontext.WithRequestID(t.Context(), "req-1")
	outcome, err := fx.service.Approve(ctx, testutil.EncodeEnvelope(t, env))
	require.NoError(t, err)

	assert.Equal(t, approval.StatusRevised, outcome.Status)
	assert.Empty(t, outcome.Error)
	require.NotEmpty(t, outcome.Tx)

	revised, err := envelope.Decode(outcome.Tx)
	require.NoError(t, err)
	ops := envelope.Operations(revised)
	// Two participants share one asset: grant × 2, payment, revoke × 2.
	require.Len(t, ops, 5)
	assert.Equal(t, xdr.OperationTypeAllowTrust, ops[0].Body.Type)
	assert.Equal(t, payment, ops[2])
	assert.Equal(t, xdr.OperationTypeAllowTrust, ops[4].Body.Type)

	events, err := fx.audits.ListByRequest(t.Context(), "req-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeRevised, events[0].Outcome)
	assert.NotEmpty(t, events[0].TxHash)
	assert.NotEmpty(t, events[0].ID)
}

func TestApproveRejectsOverLimitPayment(t *testing.T) {
	fx := newFixture(t)
	dest := testutil.NewKeypair(t)
	fx.enroll(dest.Address())

	payment := testutil.PaymentOp(t, "", dest.Address(), "REG", fx.issuer.Address(), "50.0000001")
	env := testutil.Envelope(t, fx.source.Address(), 41, payment)

	ctx := requestcontext.WithRequestID(t.Context(), "req-2")
	outcome, err := fx.service.Approve(ctx, testutil.EncodeEnvelope(t, env))
	require.NoError(t, err)

	assert.Equal(t, approval.StatusRejected, outcome.Status)
	assert.Contains(t, outcome.Error, "exceeds")
	assert.Empty(t, outcome.Tx)

	events, err := fx.audits.ListByRequest(t.Context(), "req-2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeRejected, events[0].Outcome)
	assert.Equal(t, outcome.Error, events[0].Reason)
}

func TestApproveRejectsRevokedDestination(t *testing.T) {
	fx := newFixture(t)
	dest := testutil.NewKeypair(t)
	fx.store.Put(registry.Account{AccountID: dest.Address(), Status: registry.StatusRevoked})

	payment := testutil.PaymentOp(t, "", dest.Address(), "REG", fx.issuer.Address(), "10")
	env := testutil.Envelope(t, fx.source.Address(), 41, payment)

	outcome, err := fx.service.Approve(t.Context(), testutil.EncodeEnvelope(t, env))
	require.NoError(t, err)

	assert.Equal(t, approval.StatusRejected, outcome.Status)
	assert.Contains(t, outcome.Error, dest.Address())
}

func TestApproveMalformedEnvelopeIsFault(t *testing.T) {
	fx := newFixture(t)

	ctx := requestcontext.WithRequestID(t.Context(), "req-3")
	_, err := fx.service.Approve(ctx, "not a transaction")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))

	events, listErr := fx.audits.ListByRequest(t.Context(), "req-3")
	require.NoError(t, listErr)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OutcomeFault, events[0].Outcome)
}

func TestApproveLedgerOutageIsUpstreamFault(t *testing.T) {
	fx := newFixture(t)
	dest := testutil.NewKeypair(t)
	fx.enroll(dest.Address())

	source := fx.source
	broken := approval.NewService(
		compliance.NewEvaluator(xdr.Int64(500_000_000), fx.store, rules.Stub{}),
		ledger.StaticClient{Err: assert.AnError},
		sandwich.New(fx.issuer, network.TestNetworkPassphrase, 300*time.Second),
		nil,
		slog.New(slog.DiscardHandler),
		nil,
	)

	payment := testutil.PaymentOp(t, "", dest.Address(), "REG", fx.issuer.Address(), "10")
	env := testutil.Envelope(t, source.Address(), 41, payment)

	_, err := broken.Approve(t.Context(), testutil.EncodeEnvelope(t, env))
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUpstream, dErrors.CodeOf(err))
}

func TestApproveQueriesLedgerForTransactionSource(t *testing.T) {
	fx := newFixture(t)
	dest := testutil.NewKeypair(t)
	fx.enroll(dest.Address())

	ledgerMock := &ledger.MockClient{}
	ledgerMock.On("AccountSequence", mock.Anything, fx.source.Address()).Return(int64(41), nil)
	ledgerMock.On("BaseFee", mock.Anything).Return(uint32(250), nil)

	svc := approval.NewService(
		compliance.NewEvaluator(xdr.Int64(500_000_000), fx.store, rules.Stub{}),
		ledgerMock,
		sandwich.New(fx.issuer, network.TestNetworkPassphrase, 300*time.Second),
		nil,
		slog.New(slog.DiscardHandler),
		nil,
	)

	payment := testutil.PaymentOp(t, "", dest.Address(), "REG", fx.issuer.Address(), "10")
	env := testutil.Envelope(t, fx.source.Address(), 41, payment)

	outcome, err := svc.Approve(t.Context(), testutil.EncodeEnvelope(t, env))
	require.NoError(t, err)

	assert.Equal(t, approval.StatusRevised, outcome.Status)
	ledgerMock.AssertExpectations(t)
	ledgerMock.AssertNumberOfCalls(t, "AccountSequence", 1)
	ledgerMock.AssertNumberOfCalls(t, "BaseFee", 1)
}

func TestApproveUsesRequestClock(t *testing.T) {
	fx := newFixture(t)
	dest := testutil.NewKeypair(t)
	fx.enroll(dest.Address())

	payment := testutil.PaymentOp(t, "", dest.Address(), "REG", fx.issuer.Address(), "1")
	env := testutil.Envelope(t, fx.source.Address(), 41, payment)

	now := time.Unix(1_700_000_000, 0)
	ctx := requestcontext.WithTime(t.Context(), now)
	outcome, err := fx.service.Approve(ctx, testutil.EncodeEnvelope(t, env))
	require.NoError(t, err)

	revised, err := envelope.Decode(outcome.Tx)
	require.NoError(t, err)
	require.NotNil(t, revised.V1)
	require.NotNil(t, revised.V1.Tx.Cond.TimeBounds)
	assert.Equal(t, xdr.TimePoint(now.Add(300*time.Second).Unix()), revised.V1.Tx.Cond.TimeBounds.MaxTime)
	assert.Equal(t, xdr.SequenceNumber(42), revised.V1.Tx.SeqNum)
	assert.Equal(t, xdr.Uint32(250*5), revised.V1.Tx.Fee)
}
