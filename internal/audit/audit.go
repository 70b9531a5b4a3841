// Package audit captures one structured event per terminal approval outcome.
// Append-only; sinks can be fanned out (in-process store plus Kafka).
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome values recorded per event.
const (
	OutcomeRevised  = "revised"
	OutcomeRejected = "rejected"
	OutcomeFault    = "fault"
)

// Event is the audit record for one approval request.
type Event struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives audit events. Implementations must not block the approval
// path beyond what their own timeouts allow.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Store is a queryable sink.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRequest(ctx context.Context, requestID string) ([]Event, error)
}

// Publisher stamps events and forwards them to the storage layer so tests
// can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) ListByRequest(ctx context.Context, requestID string) ([]Event, error) {
	return p.store.ListByRequest(ctx, requestID)
}

// Fanout emits to every sink, returning the first error after trying all.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, event Event) error {
	var firstErr error
	for _, sink := range f {
		if err := sink.Emit(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Sink = (*Publisher)(nil)
var _ Sink = Fanout(nil)
