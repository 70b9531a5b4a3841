package approval

import (
	"context"

	"regbridge/internal/compliance"
	"regbridge/internal/facts"
)

// Evaluator is the policy gate the pipeline runs extracted facts through.
type Evaluator interface {
	Evaluate(ctx context.Context, f facts.Facts) (compliance.Result, error)
}

// Ledger supplies the fresh per-request network snapshot. Defined here (not
// in internal/ledger) so the service compiles against exactly what it uses.
type Ledger interface {
	AccountSequence(ctx context.Context, accountID string) (int64, error)
	BaseFee(ctx context.Context) (uint32, error)
}
