package store

import (
	"context"
	"testing"
	"time"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
)

func seedProfile(t *testing.T, repo *MemoryRepository, authority domain.Identity) *domain.UserProfile {
	t.Helper()
	profile := &domain.UserProfile{
		Address:     addressing.ForUserProfile(string(authority)),
		Authority:   authority,
		Role:        domain.RoleBoth,
		CountryCode: "USA",
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.CreateUserProfile(context.Background(), profile); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return profile
}

func TestCreateUserProfileRejectsDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	profile := seedProfile(t, repo, "alice")

	if err := repo.CreateUserProfile(context.Background(), profile); err != ErrProfileExists {
		t.Fatalf("expected ErrProfileExists, got %v", err)
	}
}

func TestCreateTransferRequestBumpsCounterAtomically(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	profile := seedProfile(t, repo, "alice")

	req := &domain.TransferRequest{
		Address:   addressing.ForTransferRequest("alice", "bob", 0),
		Sender:    "alice",
		Receiver:  "bob",
		Amount:    100,
		Status:    domain.TransferPending,
		Nonce:     0,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateTransferRequest(ctx, req, profile.Address); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := repo.GetUserProfile(ctx, profile.Address)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if after.TotalSent != 1 {
		t.Fatalf("expected total_sent 1, got %d", after.TotalSent)
	}

	// Re-creating under the consumed nonce must fail and leave the counter
	// untouched.
	if err := repo.CreateTransferRequest(ctx, req, profile.Address); err != domain.ErrAddressMismatch {
		t.Fatalf("expected ErrAddressMismatch for reused nonce, got %v", err)
	}
	after, _ = repo.GetUserProfile(ctx, profile.Address)
	if after.TotalSent != 1 {
		t.Fatalf("expected total_sent still 1, got %d", after.TotalSent)
	}
}

func TestCompleteTransferIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	profile := seedProfile(t, repo, "alice")

	req := &domain.TransferRequest{
		Address:   addressing.ForTransferRequest("alice", "bob", 0),
		Sender:    "alice",
		Receiver:  "bob",
		Amount:    100,
		Status:    domain.TransferPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateTransferRequest(ctx, req, profile.Address); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.CompleteTransfer(ctx, req.Address, time.Now().UTC()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := repo.CompleteTransfer(ctx, req.Address, time.Now().UTC()); err != domain.ErrInvalidTransferStatus {
		t.Fatalf("expected ErrInvalidTransferStatus on second complete, got %v", err)
	}
	if err := repo.CancelTransfer(ctx, req.Address); err != domain.ErrInvalidTransferStatus {
		t.Fatalf("expected ErrInvalidTransferStatus cancelling completed, got %v", err)
	}
}

func seedWithdrawalFlow(t *testing.T, repo *MemoryRepository) (*domain.WithdrawalRequest, *domain.LiquidityProvider) {
	t.Helper()
	ctx := context.Background()
	profile := seedProfile(t, repo, "carol")

	provider := &domain.LiquidityProvider{
		Address:            addressing.ForLiquidityProvider("lp1"),
		Authority:          "lp1",
		Location:           "Lagos, Nigeria",
		FxRate:             1_500_000,
		TrustScore:         domain.DefaultTrustScore,
		AvailableLiquidity: 1000,
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
	if err := repo.CreateLiquidityProvider(ctx, provider); err != nil {
		t.Fatalf("create provider: %v", err)
	}

	req := &domain.WithdrawalRequest{
		Address:    addressing.ForWithdrawalRequest("carol", 0),
		Freelancer: "carol",
		Amount:     400,
		Method:     domain.PayoutMobileMoney,
		Status:     domain.WithdrawalPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.CreateWithdrawalRequest(ctx, req, profile.Address); err != nil {
		t.Fatalf("create withdrawal: %v", err)
	}
	return req, provider
}

func TestSelectWithdrawalProviderIsSetOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	req, provider := seedWithdrawalFlow(t, repo)

	if err := repo.SelectWithdrawalProvider(ctx, req.Address, provider.Authority); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := repo.SelectWithdrawalProvider(ctx, req.Address, "lp2"); err != domain.ErrInvalidWithdrawalStatus {
		t.Fatalf("expected ErrInvalidWithdrawalStatus on reselect, got %v", err)
	}

	got, err := repo.GetWithdrawalRequest(ctx, req.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SelectedProvider == nil || *got.SelectedProvider != provider.Authority {
		t.Fatalf("expected selected provider %q, got %v", provider.Authority, got.SelectedProvider)
	}
}

func TestFinalizeWithdrawalUpdatesProviderStats(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	req, provider := seedWithdrawalFlow(t, repo)

	if err := repo.SelectWithdrawalProvider(ctx, req.Address, provider.Authority); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := repo.FinalizeWithdrawal(ctx, req.Address, provider.Address, req.Amount, time.Now().UTC()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, err := repo.GetLiquidityProvider(ctx, provider.Address)
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	if got.CompletedTransactions != 1 {
		t.Fatalf("expected 1 completed transaction, got %d", got.CompletedTransactions)
	}
	if got.TotalVolume != req.Amount {
		t.Fatalf("expected total volume %d, got %d", req.Amount, got.TotalVolume)
	}
	if got.AvailableLiquidity != 600 {
		t.Fatalf("expected available liquidity 600, got %d", got.AvailableLiquidity)
	}

	if err := repo.FinalizeWithdrawal(ctx, req.Address, provider.Address, req.Amount, time.Now().UTC()); err != domain.ErrInvalidWithdrawalStatus {
		t.Fatalf("expected ErrInvalidWithdrawalStatus on double finalize, got %v", err)
	}
	if err := repo.CancelWithdrawal(ctx, req.Address); err != domain.ErrInvalidWithdrawalStatus {
		t.Fatalf("expected ErrInvalidWithdrawalStatus cancelling completed, got %v", err)
	}
}

func TestCreateWithdrawalRequestBumpsReceiverCounter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	profile := seedProfile(t, repo, "dave")

	req := &domain.WithdrawalRequest{
		Address:    addressing.ForWithdrawalRequest("dave", 0),
		Freelancer: "dave",
		Amount:     50,
		Method:     domain.PayoutBankTransfer,
		Status:     domain.WithdrawalPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.CreateWithdrawalRequest(ctx, req, profile.Address); err != nil {
		t.Fatalf("create: %v", err)
	}
	after, _ := repo.GetUserProfile(ctx, profile.Address)
	if after.TotalReceived != 1 {
		t.Fatalf("expected total_received 1, got %d", after.TotalReceived)
	}
	if after.TotalSent != 0 {
		t.Fatalf("expected total_sent untouched, got %d", after.TotalSent)
	}
}
