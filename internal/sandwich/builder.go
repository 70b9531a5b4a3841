// Package sandwich rebuilds an approved transaction with authorization
// bracketing: allow-trust grants, the original operations verbatim, then the
// mirrored revokes. The bracketing is security-critical: the regulated asset
// must never hold standing authorization outside this exact transaction.
package sandwich

import (
	"fmt"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"

	"regbridge/internal/envelope"
	"regbridge/internal/facts"
)

// FeeContext is the fresh ledger snapshot a build needs: the source account's
// current sequence number and the congestion fee per operation in stroops.
type FeeContext struct {
	SequenceNumber int64
	BaseFee        uint32
}

// Builder carries the read-only signing configuration.
type Builder struct {
	issuer            *keypair.Full
	networkPassphrase string
	timeout           time.Duration
}

func New(issuer *keypair.Full, networkPassphrase string, timeout time.Duration) *Builder {
	return &Builder{
		issuer:            issuer,
		networkPassphrase: networkPassphrase,
		timeout:           timeout,
	}
}

// Build produces the signed sandwich envelope for an approved original.
// The operation sequence is exactly:
//
//	allow-trust(authorize) × k, original operations in order, allow-trust(revoke) × k
//
// with k = distinct (asset, participant) pairs; assets iterate in sorted
// order and participants in registration order, identically on both sides of
// the bracket. Any error returns a zero envelope; a half-built transaction
// must never leak.
func (b *Builder) Build(original xdr.TransactionEnvelope, f facts.Facts, fc FeeContext, now time.Time) (xdr.TransactionEnvelope, error) {
	grants, err := b.allowTrustOps(f, true)
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}
	revokes, err := b.allowTrustOps(f, false)
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}

	originalOps := envelope.Operations(original)
	ops := make([]xdr.Operation, 0, len(grants)+len(originalOps)+len(revokes))
	ops = append(ops, grants...)
	ops = append(ops, originalOps...)
	ops = append(ops, revokes...)
	if len(ops) > 100 {
		return xdr.TransactionEnvelope{}, fmt.Errorf("sandwich has %d operations, ledger caps transactions at 100", len(ops))
	}

	tx := xdr.Transaction{
		SourceAccount: original.SourceAccount(),
		Fee:           totalFee(fc.BaseFee, len(ops)),
		SeqNum:        xdr.SequenceNumber(fc.SequenceNumber + 1),
		Cond: xdr.Preconditions{
			Type: xdr.PreconditionTypePrecondTime,
			TimeBounds: &xdr.TimeBounds{
				MinTime: 0,
				MaxTime: xdr.TimePoint(now.Add(b.timeout).Unix()),
			},
		},
		Memo:       xdr.Memo{Type: xdr.MemoTypeMemoNone},
		Operations: ops,
	}

	hash, err := network.HashTransaction(tx, b.networkPassphrase)
	if err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("hash transaction: %w", err)
	}
	signature, err := b.issuer.SignDecorated(hash[:])
	if err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("sign transaction: %w", err)
	}

	// Net-new transaction: the issuer's signature is the only one carried.
	// The wallet signs for the source account after review.
	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx:         tx,
			Signatures: []xdr.DecoratedSignature{signature},
		},
	}, nil
}

// allowTrustOps emits one allow-trust operation per (asset, participant)
// pair, sourced by the issuer. Identical iteration for grant and revoke keeps
// the bracket an exact mirror.
func (b *Builder) allowTrustOps(f facts.Facts, authorize bool) ([]xdr.Operation, error) {
	issuerAccount := xdr.MustMuxedAddress(b.issuer.Address())

	var authorizeFlag xdr.Uint32
	if authorize {
		authorizeFlag = xdr.Uint32(xdr.TrustLineFlagsAuthorizedFlag)
	}

	var ops []xdr.Operation
	for _, code := range f.AssetCodes() {
		assetCode, err := newAssetCode(code)
		if err != nil {
			return nil, err
		}
		for _, participant := range f.AssetParticipants(code) {
			trustor, err := xdr.AddressToAccountId(participant)
			if err != nil {
				return nil, fmt.Errorf("trustor %s: %w", participant, err)
			}
			issuerSource := issuerAccount
			ops = append(ops, xdr.Operation{
				SourceAccount: &issuerSource,
				Body: xdr.OperationBody{
					Type: xdr.OperationTypeAllowTrust,
					AllowTrustOp: &xdr.AllowTrustOp{
						Trustor:   trustor,
						Asset:     assetCode,
						Authorize: authorizeFlag,
					},
				},
			})
		}
	}
	return ops, nil
}

func newAssetCode(code string) (xdr.AssetCode, error) {
	switch {
	case len(code) >= 1 && len(code) <= 4:
		var ac xdr.AssetCode4
		copy(ac[:], code)
		return xdr.AssetCode{Type: xdr.AssetTypeAssetTypeCreditAlphanum4, AssetCode4: &ac}, nil
	case len(code) <= 12:
		var ac xdr.AssetCode12
		copy(ac[:], code)
		return xdr.AssetCode{Type: xdr.AssetTypeAssetTypeCreditAlphanum12, AssetCode12: &ac}, nil
	default:
		return xdr.AssetCode{}, fmt.Errorf("asset code %q exceeds 12 characters", code)
	}
}

// totalFee charges the congestion fee per operation, saturating rather than
// wrapping for absurd inputs.
func totalFee(baseFee uint32, opCount int) xdr.Uint32 {
	total := uint64(baseFee) * uint64(opCount)
	if total > uint64(^uint32(0)) {
		total = uint64(^uint32(0))
	}
	return xdr.Uint32(total)
}

// Hash returns the signable payload hash of a built envelope, for audit
// records.
func (b *Builder) Hash(env xdr.TransactionEnvelope) ([32]byte, error) {
	return network.HashTransactionInEnvelope(env, b.networkPassphrase)
}
