// Package rules adapts the external rules/compliance engine. The gateway only
// needs a yes/no plus reason; the engine's own policy logic stays opaque.
package rules

import (
	"context"
	"time"
)

// Input is the facts summary sent to the engine. Amounts travel as decimal
// strings so the engine never sees this process's internal representation.
type Input struct {
	Total        string              `json:"total"`
	Assets       map[string][]string `json:"assets"`
	Participants []string            `json:"participants"`
}

// Verdict is the engine's answer.
type Verdict struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// Engine is consulted once per approved-so-far request. Implementations must
// be timeout-guarded; an error here is RulesEngineUnavailable upstream, never
// an implicit allow or deny.
type Engine interface {
	Evaluate(ctx context.Context, input Input) (Verdict, error)
}

// Stub approves everything after a fixed latency, standing in for a real
// engine deployment. The latency mimics real-world consultation cost so the
// surrounding timeouts stay honest in development.
type Stub struct {
	Latency time.Duration
}

func (s Stub) Evaluate(ctx context.Context, _ Input) (Verdict, error) {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		case <-timer.C:
		}
	}
	return Verdict{Allow: true}, nil
}
