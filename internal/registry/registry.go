// Package registry is the persistent account registry: which ledger accounts
// are known to the gateway and whether they currently clear compliance.
// Read-only from the approval path's perspective.
package registry

import (
	"context"
	"time"
)

// Status is an account's standing in the registry.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Account is the registry record for one ledger account.
type Account struct {
	AccountID string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store looks accounts up by ledger account identifier. Implementations
// return sentinel.ErrNotFound (possibly wrapped) when no record exists;
// a missing record is a system fault upstream, never a policy rejection.
type Store interface {
	FindByAccountID(ctx context.Context, accountID string) (Account, error)
}
