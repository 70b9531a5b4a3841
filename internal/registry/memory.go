package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"regbridge/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

// Put inserts or replaces a record.
func (s *MemoryStore) Put(account Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	account.UpdatedAt = time.Now()
	s.accounts[account.AccountID] = account
}

// SetStatus is a convenience for seeding test fixtures.
func (s *MemoryStore) SetStatus(accountID string, status Status) {
	s.Put(Account{AccountID: accountID, Status: status})
}

func (s *MemoryStore) FindByAccountID(_ context.Context, accountID string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	return account, nil
}
