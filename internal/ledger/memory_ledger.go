/**
 * @description
 * In-memory TokenLedger used by tests and local development. Balances live
 * in a map guarded by a mutex; Execute validates every debit against the
 * projected balances before applying anything, so a failing batch leaves no
 * trace.
 */

package ledger

import (
	"context"
	"sync"

	"github.com/crosspay/settlement-service/internal/domain"
)

// MemoryLedger is a process-local TokenLedger.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[domain.Identity]uint64
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[domain.Identity]uint64)}
}

// Credit funds an account directly. Used to seed balances; the settlement
// core itself never mints.
func (l *MemoryLedger) Credit(account domain.Identity, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// Balance returns the current balance of an account. Unknown accounts hold
// zero; the ledger allocates storage on first credit.
func (l *MemoryLedger) Balance(ctx context.Context, account domain.Identity) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Execute applies the batch atomically. Debits are validated against a
// projection that accounts for earlier movements in the same batch, so a
// batch may spend funds it receives within itself.
func (l *MemoryLedger) Execute(ctx context.Context, movements []Movement) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	projected := make(map[domain.Identity]uint64, len(movements)*2)
	for _, m := range movements {
		if _, ok := projected[m.From]; !ok {
			projected[m.From] = l.balances[m.From]
		}
		if _, ok := projected[m.To]; !ok {
			projected[m.To] = l.balances[m.To]
		}
		if projected[m.From] < m.Amount {
			return ErrInsufficientFunds
		}
		projected[m.From] -= m.Amount
		projected[m.To] += m.Amount
	}

	for account, balance := range projected {
		l.balances[account] = balance
	}
	return nil
}
