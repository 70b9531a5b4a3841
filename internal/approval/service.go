// Package approval is the gateway orchestrator: one-shot pipeline per
// request, decode through sign, with every partial-failure state explicit.
package approval

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/xdr"
	"golang.org/x/sync/errgroup"

	"regbridge/internal/approval/metrics"
	"regbridge/internal/audit"
	"regbridge/internal/envelope"
	"regbridge/internal/facts"
	"regbridge/internal/sandwich"
	dErrors "regbridge/pkg/domain-errors"
	"regbridge/pkg/requestcontext"
)

// Pipeline stages, for logs and metrics. A request moves strictly forward;
// any failure transitions straight to the response.
const (
	StageDecoded        = "decoded"
	StageFactsExtracted = "facts_extracted"
	StageEvaluated      = "evaluated"
	StageContextFetched = "context_fetched"
	StageBuilt          = "built"
	StageSigned         = "signed"
)

// Outcome statuses mirrored to the wire.
const (
	StatusRejected = "rejected"
	StatusRevised  = "revised"
)

// Outcome is the terminal result of one approval request. Exactly one of
// Error (rejected) or Tx (revised) is set.
type Outcome struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Tx     string `json:"tx,omitempty"`

	txHash string // signable payload hash of the revised tx, for audit
}

// Service sequences the approval pipeline.
type Service struct {
	evaluator Evaluator
	ledger    Ledger
	builder   *sandwich.Builder
	auditor   audit.Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewService(evaluator Evaluator, ledger Ledger, builder *sandwich.Builder, auditor audit.Sink, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		evaluator: evaluator,
		ledger:    ledger,
		builder:   builder,
		auditor:   auditor,
		logger:    logger,
		metrics:   m,
	}
}

// Approve runs one tentative transaction through the pipeline. A rejection is
// a successful call with a rejected Outcome; an error is a system fault and
// no Outcome is produced. The service never returns a revised Outcome unless
// the new transaction was fully built and signed.
func (s *Service) Approve(ctx context.Context, txBase64 string) (Outcome, error) {
	start := time.Now()
	requestID := requestcontext.RequestID(ctx)

	outcome, err := s.run(ctx, txBase64)
	s.metrics.ObserveApprove(time.Since(start))

	switch {
	case err != nil:
		s.metrics.IncrementOutcome(audit.OutcomeFault, string(dErrors.CodeOf(err)))
		s.emitAudit(ctx, audit.Event{
			RequestID: requestID,
			Outcome:   audit.OutcomeFault,
			Reason:    err.Error(),
		})
	case outcome.Status == StatusRejected:
		s.metrics.IncrementOutcome(audit.OutcomeRejected, "policy")
		s.emitAudit(ctx, audit.Event{
			RequestID: requestID,
			Outcome:   audit.OutcomeRejected,
			Reason:    outcome.Error,
		})
	default:
		s.metrics.IncrementOutcome(audit.OutcomeRevised, "")
		s.emitAudit(ctx, audit.Event{
			RequestID: requestID,
			Outcome:   audit.OutcomeRevised,
			TxHash:    outcome.txHash,
		})
	}
	return outcome, err
}

func (s *Service) run(ctx context.Context, txBase64 string) (Outcome, error) {
	requestID := requestcontext.RequestID(ctx)
	stageStart := time.Now()

	env, err := envelope.Decode(txBase64)
	if err != nil {
		// Generic parse message outward; detail stays in logs.
		s.logger.WarnContext(ctx, "envelope decode failed", "request_id", requestID, "error", err)
		return Outcome{}, dErrors.Wrap(dErrors.CodeBadRequest, "could not parse transaction envelope", err)
	}
	s.observeStage(StageDecoded, &stageStart)

	sourceAddr := envelope.SourceAddress(env)
	ops := envelope.Operations(env)
	s.logOperations(ctx, sourceAddr, ops)

	f, err := facts.Extract(sourceAddr, ops)
	if err != nil {
		return Outcome{}, dErrors.Wrap(dErrors.CodeBadRequest, "could not derive transaction facts", err)
	}
	s.observeStage(StageFactsExtracted, &stageStart)

	result, err := s.evaluator.Evaluate(ctx, f)
	if err != nil {
		return Outcome{}, err
	}
	s.observeStage(StageEvaluated, &stageStart)
	if !result.Approved {
		s.logger.InfoContext(ctx, "transaction rejected",
			"request_id", requestID,
			"reason", result.Reason,
		)
		return Outcome{Status: StatusRejected, Error: result.Reason}, nil
	}

	feeCtx, err := s.fetchLedgerContext(ctx, sourceAddr)
	if err != nil {
		return Outcome{}, dErrors.Wrap(dErrors.CodeUpstream, "ledger context unavailable", err)
	}
	s.observeStage(StageContextFetched, &stageStart)

	revised, err := s.builder.Build(env, f, feeCtx, requestcontext.Now(ctx))
	if err != nil {
		return Outcome{}, dErrors.Wrap(dErrors.CodeInternal, "could not build revised transaction", err)
	}
	s.observeStage(StageBuilt, &stageStart)

	hash, err := s.builder.Hash(revised)
	if err != nil {
		return Outcome{}, dErrors.Wrap(dErrors.CodeInternal, "could not hash revised transaction", err)
	}
	s.observeStage(StageSigned, &stageStart)

	encoded, err := envelope.Encode(revised)
	if err != nil {
		return Outcome{}, dErrors.Wrap(dErrors.CodeInternal, "could not encode revised transaction", err)
	}

	txHash := hex.EncodeToString(hash[:])
	s.logger.InfoContext(ctx, "transaction approved and revised",
		"request_id", requestID,
		"source", sourceAddr,
		"operations", len(envelope.Operations(revised)),
		"pairs", f.PairCount(),
		"tx_hash", txHash,
	)
	return Outcome{Status: StatusRevised, Tx: encoded, txHash: txHash}, nil
}

// fetchLedgerContext loads the source account sequence and fee stats
// concurrently; both must land before building starts.
func (s *Service) fetchLedgerContext(ctx context.Context, sourceAddr string) (sandwich.FeeContext, error) {
	var fc sandwich.FeeContext
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		seq, err := s.ledger.AccountSequence(ctx, sourceAddr)
		s.metrics.ObserveExternal("ledger_account", time.Since(start))
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		fc.SequenceNumber = seq
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		fee, err := s.ledger.BaseFee(ctx)
		s.metrics.ObserveExternal("ledger_fees", time.Since(start))
		if err != nil {
			return fmt.Errorf("fee stats: %w", err)
		}
		fc.BaseFee = fee
		return nil
	})

	if err := g.Wait(); err != nil {
		return sandwich.FeeContext{}, err
	}
	return fc, nil
}

// logOperations mirrors the original bridge's per-operation trace at debug
// level.
func (s *Service) logOperations(ctx context.Context, sourceAddr string, ops []xdr.Operation) {
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	for i, op := range ops {
		attrs := []any{
			"index", i,
			"type", op.Body.Type.String(),
			"source", facts.EffectiveSource(op, sourceAddr),
		}
		if payment, ok := op.Body.GetPaymentOp(); ok {
			dest := payment.Destination.ToAccountId()
			attrs = append(attrs,
				"destination", dest.Address(),
				"asset", payment.Asset.StringCanonical(),
				"amount", amount.String(payment.Amount),
			)
		}
		s.logger.DebugContext(ctx, "proposed operation", attrs...)
	}
}

func (s *Service) observeStage(stage string, start *time.Time) {
	s.metrics.ObserveStage(stage, time.Since(*start))
	*start = time.Now()
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
