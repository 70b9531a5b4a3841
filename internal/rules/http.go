package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"regbridge/pkg/platform/sentinel"
)

// HTTPEngine calls a rules engine over HTTP: POST the facts summary, read
// back a verdict. Every call is bounded by the configured timeout regardless
// of the caller's context.
type HTTPEngine struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewHTTP(url string, timeout time.Duration) *HTTPEngine {
	return &HTTPEngine{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEngine) Evaluate(ctx context.Context, input Input) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(input)
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal rules input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build rules request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return Verdict{}, fmt.Errorf("rules engine: %w", sentinel.ErrTimeout)
		}
		return Verdict{}, fmt.Errorf("rules engine: %w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("rules engine: %w: status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("rules engine: %w: decode verdict: %v", sentinel.ErrUnavailable, err)
	}
	return verdict, nil
}

var _ Engine = (*HTTPEngine)(nil)
var _ Engine = Stub{}
