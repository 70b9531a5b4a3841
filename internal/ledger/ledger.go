// Package ledger adapts the network query interface: fresh sequence numbers
// and congestion fee stats. Both must be fetched per request; a stale
// sequence makes the rebuilt transaction unsubmittable, a stale fee risks
// rejection under congestion.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go/clients/horizonclient"

	"regbridge/pkg/platform/sentinel"
)

// MinBaseFee is the network's fee floor in stroops per operation. Fee stats
// under congestion-free conditions can report below it.
const MinBaseFee = 100

// Client is the network query port the approval pipeline depends on.
type Client interface {
	// AccountSequence loads the current sequence number of accountID.
	AccountSequence(ctx context.Context, accountID string) (int64, error)
	// BaseFee returns the 90th-percentile charged fee in stroops per
	// operation, clamped to the network floor.
	BaseFee(ctx context.Context) (uint32, error)
}

// HorizonClient implements Client against a horizon instance.
type HorizonClient struct {
	hz horizonclient.ClientInterface
}

// NewHorizon builds a client for the horizon server at url.
func NewHorizon(url string) *HorizonClient {
	hz := &horizonclient.Client{HorizonURL: url}
	hz.SetHorizonTimeout(10 * time.Second)
	return &HorizonClient{hz: hz}
}

// NewHorizonFromInterface wraps an existing client (tests).
func NewHorizonFromInterface(hz horizonclient.ClientInterface) *HorizonClient {
	return &HorizonClient{hz: hz}
}

func (c *HorizonClient) AccountSequence(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	account, err := c.hz.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		return 0, fmt.Errorf("load account %s: %w: %v", accountID, sentinel.ErrUnavailable, err)
	}
	seq, err := account.GetSequenceNumber()
	if err != nil {
		return 0, fmt.Errorf("load account %s: %w: bad sequence: %v", accountID, sentinel.ErrUnavailable, err)
	}
	return seq, nil
}

func (c *HorizonClient) BaseFee(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	stats, err := c.hz.FeeStats()
	if err != nil {
		return 0, fmt.Errorf("fee stats: %w: %v", sentinel.ErrUnavailable, err)
	}
	fee := stats.FeeCharged.P90
	if fee < MinBaseFee {
		fee = MinBaseFee
	}
	if fee > int64(^uint32(0)) {
		fee = int64(^uint32(0))
	}
	return uint32(fee), nil
}

var _ Client = (*HorizonClient)(nil)
