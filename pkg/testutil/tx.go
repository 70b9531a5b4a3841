// Package testutil builds transaction fixtures for tests. Everything here
// constructs real XDR values so tests exercise the same code paths as wire
// input.
package testutil

import (
	"testing"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
)

// NewKeypair returns a fresh random keypair.
func NewKeypair(t *testing.T) *keypair.Full {
	t.Helper()
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return kp
}

// PaymentOp builds a credit-asset payment. source == "" leaves the operation
// source unset so it falls back to the transaction source.
func PaymentOp(t *testing.T, source, dest, assetCode, assetIssuer, amt string) xdr.Operation {
	t.Helper()
	parsed, err := amount.Parse(amt)
	if err != nil {
		t.Fatalf("parse amount %q: %v", amt, err)
	}
	asset, err := xdr.NewCreditAsset(assetCode, assetIssuer)
	if err != nil {
		t.Fatalf("credit asset %s/%s: %v", assetCode, assetIssuer, err)
	}
	op := xdr.Operation{
		Body: xdr.OperationBody{
			Type: xdr.OperationTypePayment,
			PaymentOp: &xdr.PaymentOp{
				Destination: xdr.MustMuxedAddress(dest),
				Asset:       asset,
				Amount:      parsed,
			},
		},
	}
	if source != "" {
		muxed := xdr.MustMuxedAddress(source)
		op.SourceAccount = &muxed
	}
	return op
}

// NativePaymentOp builds a native-asset payment.
func NativePaymentOp(t *testing.T, dest, amt string) xdr.Operation {
	t.Helper()
	parsed, err := amount.Parse(amt)
	if err != nil {
		t.Fatalf("parse amount %q: %v", amt, err)
	}
	return xdr.Operation{
		Body: xdr.OperationBody{
			Type: xdr.OperationTypePayment,
			PaymentOp: &xdr.PaymentOp{
				Destination: xdr.MustMuxedAddress(dest),
				Asset:       xdr.MustNewNativeAsset(),
				Amount:      parsed,
			},
		},
	}
}

// ManageDataOp builds a non-payment operation, for exercising opaque
// pass-through and participant accounting.
func ManageDataOp(t *testing.T, source, name string) xdr.Operation {
	t.Helper()
	op := xdr.Operation{
		Body: xdr.OperationBody{
			Type: xdr.OperationTypeManageData,
			ManageDataOp: &xdr.ManageDataOp{
				DataName: xdr.String64(name),
			},
		},
	}
	if source != "" {
		muxed := xdr.MustMuxedAddress(source)
		op.SourceAccount = &muxed
	}
	return op
}

// Envelope wraps ops in an unsigned v1 envelope sourced by sourceAddr.
func Envelope(t *testing.T, sourceAddr string, seq int64, ops ...xdr.Operation) xdr.TransactionEnvelope {
	t.Helper()
	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx: xdr.Transaction{
				SourceAccount: xdr.MustMuxedAddress(sourceAddr),
				Fee:           xdr.Uint32(100 * len(ops)),
				SeqNum:        xdr.SequenceNumber(seq),
				Cond:          xdr.Preconditions{Type: xdr.PreconditionTypePrecondNone},
				Memo:          xdr.Memo{Type: xdr.MemoTypeMemoNone},
				Operations:    ops,
			},
		},
	}
}

// EnvelopeV0 wraps ops in an unsigned legacy v0 envelope. Old wallets still
// emit these, so the codec has to take them.
func EnvelopeV0(t *testing.T, sourceAddr string, seq int64, ops ...xdr.Operation) xdr.TransactionEnvelope {
	t.Helper()
	source := xdr.MustAddress(sourceAddr)
	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTxV0,
		V0: &xdr.TransactionV0Envelope{
			Tx: xdr.TransactionV0{
				SourceAccountEd25519: *source.Ed25519,
				Fee:                  xdr.Uint32(100 * len(ops)),
				SeqNum:               xdr.SequenceNumber(seq),
				Memo:                 xdr.Memo{Type: xdr.MemoTypeMemoNone},
				Operations:           ops,
			},
		},
	}
}

// FeeBumpEnvelope wraps a v1 envelope in a fee bump sourced by feeSourceAddr.
func FeeBumpEnvelope(t *testing.T, feeSourceAddr string, inner xdr.TransactionEnvelope) xdr.TransactionEnvelope {
	t.Helper()
	if inner.V1 == nil {
		t.Fatalf("fee bump needs a v1 inner envelope, got type %d", inner.Type)
	}
	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTxFeeBump,
		FeeBump: &xdr.FeeBumpTransactionEnvelope{
			Tx: xdr.FeeBumpTransaction{
				FeeSource: xdr.MustMuxedAddress(feeSourceAddr),
				Fee:       xdr.Int64(200 * (len(inner.Operations()) + 1)),
				InnerTx: xdr.FeeBumpTransactionInnerTx{
					Type: xdr.EnvelopeTypeEnvelopeTypeTx,
					V1:   inner.V1,
				},
			},
		},
	}
}

// EncodeEnvelope renders env as base64 for wire-level tests.
func EncodeEnvelope(t *testing.T, env xdr.TransactionEnvelope) string {
	t.Helper()
	encoded, err := xdr.MarshalBase64(env)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	return encoded
}
