// Package facts derives the normalized compliance summary from a decoded
// transaction: aggregated payment total, per-asset participant sets, and the
// flat participant list used for eligibility checks.
package facts

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/stellar/go/xdr"
)

// ErrAmountOverflow marks a transaction whose payment total does not fit the
// ledger's 64-bit fixed-point representation.
var ErrAmountOverflow = errors.New("payment total overflows")

// Facts is the summary a compliance decision is made against. It is built by
// a single pass over the operations and never mutated afterwards.
type Facts struct {
	// Total is the aggregated payment amount across every payment
	// operation, in 7-decimal fixed-point units. Exact integer arithmetic:
	// no float ever touches the limit comparison.
	Total xdr.Int64

	// Participants is the flat list in operation order, duplicates kept:
	// every operation's effective source, plus its destination when the
	// operation type carries one.
	Participants []string

	assetCodes []string            // sorted
	byAsset    map[string][]string // participant sets, insertion-ordered
}

// Extract folds over ops and produces Facts. sourceAddr is the
// transaction-level source, used as the effective source for operations that
// do not carry their own. Pure function: same input, same Facts.
func Extract(sourceAddr string, ops []xdr.Operation) (Facts, error) {
	f := Facts{byAsset: map[string][]string{}}

	for i, op := range ops {
		source := effectiveSource(op, sourceAddr)
		f.Participants = append(f.Participants, source)
		if dest, ok := destination(op); ok {
			f.Participants = append(f.Participants, dest)
		}

		if op.Body.Type != xdr.OperationTypePayment {
			continue
		}
		payment := op.Body.MustPaymentOp()

		if payment.Amount < 0 {
			return Facts{}, fmt.Errorf("operation %d: negative payment amount", i)
		}
		if payment.Amount > math.MaxInt64-f.Total {
			return Facts{}, fmt.Errorf("%w at operation %d", ErrAmountOverflow, i)
		}
		f.Total += payment.Amount

		code, ok, err := assetCode(payment.Asset)
		if err != nil {
			return Facts{}, fmt.Errorf("operation %d: %w", i, err)
		}
		if !ok {
			// Native-asset payments count toward the total but have
			// no issuer-controlled trust line to toggle.
			continue
		}
		dest := payment.Destination.ToAccountId().Address()
		f.register(code, source)
		f.register(code, dest)
	}

	sort.Strings(f.assetCodes)
	return f, nil
}

// AssetCodes enumerates asset codes in sorted order. A code appears here only
// if at least one payment operation used it.
func (f Facts) AssetCodes() []string {
	out := make([]string, len(f.assetCodes))
	copy(out, f.assetCodes)
	return out
}

// AssetParticipants returns the participant set for code in insertion order,
// deterministic for a given transaction.
func (f Facts) AssetParticipants(code string) []string {
	set := f.byAsset[code]
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// DistinctParticipants returns the flat list deduplicated, first-appearance
// order preserved. Eligibility checks walk this and stop at the first
// failure, so order is semantics, not cosmetics.
func (f Facts) DistinctParticipants() []string {
	seen := make(map[string]struct{}, len(f.Participants))
	var out []string
	for _, p := range f.Participants {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// PairCount is the number of distinct (asset, participant) pairs, i.e. how
// many allow-trust operations each side of the sandwich needs.
func (f Facts) PairCount() int {
	n := 0
	for _, set := range f.byAsset {
		n += len(set)
	}
	return n
}

func (f *Facts) register(code, participant string) {
	set := f.byAsset[code]
	for _, p := range set {
		if p == participant {
			return
		}
	}
	if len(set) == 0 {
		f.assetCodes = append(f.assetCodes, code)
	}
	f.byAsset[code] = append(set, participant)
}

// EffectiveSource resolves an operation's source: its own if set, else the
// transaction-level source. Exported for per-operation debug logging.
func EffectiveSource(op xdr.Operation, sourceAddr string) string {
	return effectiveSource(op, sourceAddr)
}

func effectiveSource(op xdr.Operation, sourceAddr string) string {
	if op.SourceAccount != nil {
		return op.SourceAccount.ToAccountId().Address()
	}
	return sourceAddr
}

// destination extracts the destination account for operation types that have
// one. Everything else participates through its source only.
func destination(op xdr.Operation) (string, bool) {
	switch op.Body.Type {
	case xdr.OperationTypePayment:
		d := op.Body.MustPaymentOp().Destination
		return d.ToAccountId().Address(), true
	case xdr.OperationTypeCreateAccount:
		return op.Body.MustCreateAccountOp().Destination.Address(), true
	case xdr.OperationTypePathPaymentStrictReceive:
		d := op.Body.MustPathPaymentStrictReceiveOp().Destination
		return d.ToAccountId().Address(), true
	case xdr.OperationTypePathPaymentStrictSend:
		d := op.Body.MustPathPaymentStrictSendOp().Destination
		return d.ToAccountId().Address(), true
	case xdr.OperationTypeAccountMerge:
		d := op.Body.MustDestination()
		return d.ToAccountId().Address(), true
	default:
		return "", false
	}
}

// assetCode extracts the short code from a credit asset. Native assets return
// ok=false.
func assetCode(asset xdr.Asset) (string, bool, error) {
	var typ, code, issuer string
	if err := asset.Extract(&typ, &code, &issuer); err != nil {
		return "", false, fmt.Errorf("extract asset: %w", err)
	}
	if typ == "native" {
		return "", false, nil
	}
	return code, true, nil
}
