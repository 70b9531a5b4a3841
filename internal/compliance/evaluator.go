// Package compliance applies the gateway's policy checks to extracted
// transaction facts. Rule priority (fail-fast):
//  1. Amount limit: pure, no I/O, so it runs before any lookup is issued.
//  2. Participant eligibility: registry statuses, first failure wins.
//  3. External rules engine: consulted only for requests that already pass
//     static policy; a network round-trip is dearer than both local checks.
//
// Rejections are outcome values, not errors. Errors mean the evaluation
// itself failed (lookup fault, engine unavailable) and must never read as a
// policy answer.
package compliance

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/xdr"
	"golang.org/x/sync/errgroup"

	"regbridge/internal/facts"
	"regbridge/internal/registry"
	"regbridge/internal/rules"
	dErrors "regbridge/pkg/domain-errors"
	"regbridge/pkg/platform/sentinel"
)

// lookupConcurrency bounds parallel registry reads per request.
const lookupConcurrency = 8

// Result is the evaluation outcome. No partial approval: either every check
// passed or Reason names the first violation.
type Result struct {
	Approved bool
	Reason   string
}

// Evaluator holds the read-only policy configuration and collaborators.
type Evaluator struct {
	limit    xdr.Int64
	registry registry.Store
	engine   rules.Engine // nil disables the external gate
}

func NewEvaluator(limit xdr.Int64, reg registry.Store, engine rules.Engine) *Evaluator {
	return &Evaluator{limit: limit, registry: reg, engine: engine}
}

// Evaluate runs the rule chain against f.
func (e *Evaluator) Evaluate(ctx context.Context, f facts.Facts) (Result, error) {
	if f.Total > e.limit {
		return Result{Reason: fmt.Sprintf(
			"payment total %s exceeds the %s limit",
			amount.String(f.Total), amount.String(e.limit),
		)}, nil
	}

	participants := f.DistinctParticipants()
	snapshot, err := e.snapshotStatuses(ctx, participants)
	if err != nil {
		return Result{}, err
	}
	// Lookups ran concurrently; the verdict walks the list in
	// first-appearance order so the named account is deterministic.
	for _, p := range participants {
		if status := snapshot[p]; status != registry.StatusActive {
			return Result{Reason: fmt.Sprintf(
				"account %s has had asset access revoked (status %s)", p, status,
			)}, nil
		}
	}

	if e.engine != nil {
		verdict, err := e.engine.Evaluate(ctx, engineInput(f))
		if err != nil {
			return Result{}, dErrors.Wrap(dErrors.CodeUpstream, "rules engine unavailable", err)
		}
		if !verdict.Allow {
			reason := verdict.Reason
			if reason == "" {
				reason = "denied by rules engine"
			}
			return Result{Reason: reason}, nil
		}
	}

	return Result{Approved: true}, nil
}

// snapshotStatuses collects every participant's status before any is judged,
// so one evaluation never checks different participants against different
// moments in time.
func (e *Evaluator) snapshotStatuses(ctx context.Context, participants []string) (map[string]registry.Status, error) {
	snapshot := make(map[string]registry.Status, len(participants))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)

	results := make([]registry.Account, len(participants))
	for i, p := range participants {
		g.Go(func() error {
			account, err := e.registry.FindByAccountID(ctx, p)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.Wrap(dErrors.CodeInternal,
						fmt.Sprintf("account lookup failed for %s", p), err)
				}
				return dErrors.Wrap(dErrors.CodeInternal, "account registry unavailable", err)
			}
			results[i] = account
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, p := range participants {
		snapshot[p] = results[i].Status
	}
	return snapshot, nil
}

func engineInput(f facts.Facts) rules.Input {
	assets := make(map[string][]string)
	for _, code := range f.AssetCodes() {
		assets[code] = f.AssetParticipants(code)
	}
	return rules.Input{
		Total:        amount.String(f.Total),
		Assets:       assets,
		Participants: f.DistinctParticipants(),
	}
}
