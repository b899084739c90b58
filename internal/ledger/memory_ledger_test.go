package ledger

import (
	"context"
	"testing"

	"github.com/crosspay/settlement-service/internal/domain"
)

func mustBalance(t *testing.T, l *MemoryLedger, account domain.Identity) uint64 {
	t.Helper()
	balance, err := l.Balance(context.Background(), account)
	if err != nil {
		t.Fatalf("unexpected balance error: %v", err)
	}
	return balance
}

func TestExecuteAppliesAllMovements(t *testing.T) {
	l := NewMemoryLedger()
	l.Credit("alice", 1000)

	err := l.Execute(context.Background(), []Movement{
		{From: "alice", To: "bob", Amount: 600, Reference: "m1"},
		{From: "alice", To: "treasury", Amount: 400, Reference: "m2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mustBalance(t, l, "alice"); got != 0 {
		t.Fatalf("expected alice at 0, got %d", got)
	}
	if got := mustBalance(t, l, "bob"); got != 600 {
		t.Fatalf("expected bob at 600, got %d", got)
	}
	if got := mustBalance(t, l, "treasury"); got != 400 {
		t.Fatalf("expected treasury at 400, got %d", got)
	}
}

func TestExecuteIsAllOrNothing(t *testing.T) {
	l := NewMemoryLedger()
	l.Credit("alice", 500)

	err := l.Execute(context.Background(), []Movement{
		{From: "alice", To: "bob", Amount: 300, Reference: "m1"},
		{From: "alice", To: "carol", Amount: 300, Reference: "m2"}, // overdraws
	})
	if err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The first leg must not have applied.
	if got := mustBalance(t, l, "alice"); got != 500 {
		t.Fatalf("expected alice untouched at 500, got %d", got)
	}
	if got := mustBalance(t, l, "bob"); got != 0 {
		t.Fatalf("expected bob untouched at 0, got %d", got)
	}
}

func TestExecuteAllowsSpendingIntraBatchCredits(t *testing.T) {
	l := NewMemoryLedger()
	l.Credit("alice", 100)

	err := l.Execute(context.Background(), []Movement{
		{From: "alice", To: "bob", Amount: 100, Reference: "m1"},
		{From: "bob", To: "carol", Amount: 100, Reference: "m2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustBalance(t, l, "carol"); got != 100 {
		t.Fatalf("expected carol at 100, got %d", got)
	}
}
