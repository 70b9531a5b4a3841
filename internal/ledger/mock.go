package ledger

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// StaticClient serves fixed ledger data with a configurable latency to mimic
// real-world calls. Used in tests and local development without a horizon.
type StaticClient struct {
	Sequence int64
	Fee      uint32
	Latency  time.Duration
	Err      error
}

func (c StaticClient) AccountSequence(ctx context.Context, _ string) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Sequence, nil
}

func (c StaticClient) BaseFee(ctx context.Context) (uint32, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Fee, nil
}

func (c StaticClient) wait(ctx context.Context) error {
	if c.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(c.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MockClient is a testify mock for assertions on call counts and arguments.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) AccountSequence(ctx context.Context, accountID string) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockClient) BaseFee(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint32), args.Error(1)
}

var _ Client = StaticClient{}
var _ Client = (*MockClient)(nil)
