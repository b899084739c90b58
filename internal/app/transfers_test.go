package app

import (
	"context"
	"errors"
	"testing"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
	"github.com/crosspay/settlement-service/internal/ledger"
)

// transferParams derives the expected request address from the sender's
// current counter, the way a client would.
func transferParams(t *testing.T, svc *Service, sender, receiver domain.Identity, amount uint64) InitiateTransferParams {
	t.Helper()
	profile, err := svc.GetUserProfile(context.Background(), sender)
	if err != nil {
		t.Fatalf("get sender profile: %v", err)
	}
	return InitiateTransferParams{
		Amount:         amount,
		Receiver:       receiver,
		RequestAddress: addressing.ForTransferRequest(string(sender), string(receiver), profile.TotalSent),
	}
}

func TestInitiateTransferRequiresKyc(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	registerUser(t, svc, "alice", false)
	tokens.Credit("alice", 1000)

	params := transferParams(t, svc, "alice", "bob", 100)
	if _, err := svc.InitiateTransfer(context.Background(), "alice", params); !errors.Is(err, domain.ErrKycNotVerified) {
		t.Fatalf("expected ErrKycNotVerified, got %v", err)
	}
}

func TestInitiateTransferRejectsZeroAmount(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc, "alice", true)

	if _, err := svc.InitiateTransfer(context.Background(), "alice", InitiateTransferParams{Receiver: "bob"}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestInitiateTransferRequiresReceiver(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc, "alice", true)

	if _, err := svc.InitiateTransfer(context.Background(), "alice", InitiateTransferParams{Amount: 100}); !errors.Is(err, domain.ErrMissingReceiver) {
		t.Fatalf("expected ErrMissingReceiver, got %v", err)
	}
}

func TestInitiateTransferRejectsStaleAddress(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	registerUser(t, svc, "alice", true)
	tokens.Credit("alice", 1000)
	ctx := context.Background()

	params := transferParams(t, svc, "alice", "bob", 100)
	if _, err := svc.InitiateTransfer(ctx, "alice", params); err != nil {
		t.Fatalf("first initiate: %v", err)
	}

	// The counter advanced, so the same derived address is now stale.
	if _, err := svc.InitiateTransfer(ctx, "alice", params); !errors.Is(err, domain.ErrAddressMismatch) {
		t.Fatalf("expected ErrAddressMismatch for stale address, got %v", err)
	}
}

func TestInitiateTransferAdvancesNonce(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	registerUser(t, svc, "alice", true)
	tokens.Credit("alice", 1000)
	ctx := context.Background()

	first, err := svc.InitiateTransfer(ctx, "alice", transferParams(t, svc, "alice", "bob", 100))
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	second, err := svc.InitiateTransfer(ctx, "alice", transferParams(t, svc, "alice", "bob", 100))
	if err != nil {
		t.Fatalf("second initiate: %v", err)
	}

	if first.Nonce != 0 || second.Nonce != 1 {
		t.Fatalf("expected nonces 0 and 1, got %d and %d", first.Nonce, second.Nonce)
	}
	if first.Address == second.Address {
		t.Fatal("expected distinct request addresses for distinct nonces")
	}
}

func TestConfirmTransferMovesFundsAndFee(t *testing.T) {
	svc, _, tokens, events := newTestService(t)
	registerUser(t, svc, "alice", true)
	tokens.Credit("alice", 1_000_000_000)
	tokens.Credit("bob", 500_000_000)
	ctx := context.Background()

	req, err := svc.InitiateTransfer(ctx, "alice", transferParams(t, svc, "alice", "bob", 100_000_000))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirmed, err := svc.ConfirmTransfer(ctx, "alice", req.Address)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.TransferCompleted {
		t.Fatalf("expected completed status, got %s", confirmed.Status)
	}
	if confirmed.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	assertBalance(t, tokens, "alice", 900_000_000)
	assertBalance(t, tokens, "bob", 599_500_000)
	assertBalance(t, tokens, "treasury", 500_000)

	if !events.published("transfer.completed") {
		t.Fatal("expected transfer.completed event")
	}
}

func TestConfirmTransferOnlySender(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	registerUser(t, svc, "alice", true)
	tokens.Credit("alice", 1000)
	ctx := context.Background()

	req, err := svc.InitiateTransfer(ctx, "alice", transferParams(t, svc, "alice", "bob", 100))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.ConfirmTransfer(ctx, "mallory", req.Address); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestConfirmTransferTwiceLeavesBalancesAlone(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	registerUser(t, svc, "alice", true)
	tokens.Credit("alice", 1000)
	ctx := context.Background()

	req, err := svc.InitiateTransfer(ctx, "alice", transferParams(t, svc, "alice", "bob", 1000))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.ConfirmTransfer(ctx, "alice", req.Address); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := svc.ConfirmTransfer(ctx, "alice", req.Address); !errors.Is(err, domain.ErrInvalidTransferStatus) {
		t.Fatalf("expected ErrInvalidTransferStatus, got %v", err)
	}

	// 1000 at 50 bps truncates to a 5 unit fee.
	assertBalance(t, tokens, "alice", 0)
	assertBalance(t, tokens, "bob", 995)
	assertBalance(t, tokens, "treasury", 5)
}

func TestConfirmTransferInsufficientFundsLeavesPending(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	registerUser(t, svc, "alice", true)
	tokens.Credit("alice", 500)
	ctx := context.Background()

	req, err := svc.InitiateTransfer(ctx, "alice", transferParams(t, svc, "alice", "bob", 400))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Drain the sender between initiation and confirmation.
	drained := []ledger.Movement{{From: "alice", To: "elsewhere", Amount: 500}}
	if err := tokens.Execute(ctx, drained); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if _, err := svc.ConfirmTransfer(ctx, "alice", req.Address); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	stored, err := svc.GetTransferRequest(ctx, req.Address)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if stored.Status != domain.TransferPending {
		t.Fatalf("expected request to stay pending, got %s", stored.Status)
	}
	assertBalance(t, tokens, "bob", 0)
}

func TestCancelTransferBlocksConfirm(t *testing.T) {
	svc, _, tokens, events := newTestService(t)
	registerUser(t, svc, "alice", true)
	tokens.Credit("alice", 1000)
	ctx := context.Background()

	req, err := svc.InitiateTransfer(ctx, "alice", transferParams(t, svc, "alice", "bob", 100))
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := svc.CancelTransfer(ctx, "alice", req.Address); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.ConfirmTransfer(ctx, "alice", req.Address); !errors.Is(err, domain.ErrInvalidTransferStatus) {
		t.Fatalf("expected ErrInvalidTransferStatus after cancel, got %v", err)
	}
	assertBalance(t, tokens, "alice", 1000)
	if !events.published("transfer.cancelled") {
		t.Fatal("expected transfer.cancelled event")
	}
}

func assertBalance(t *testing.T, tokens *ledger.MemoryLedger, account domain.Identity, want uint64) {
	t.Helper()
	got, err := tokens.Balance(context.Background(), account)
	if err != nil {
		t.Fatalf("balance %s: %v", account, err)
	}
	if got != want {
		t.Fatalf("expected %s balance %d, got %d", account, want, got)
	}
}
