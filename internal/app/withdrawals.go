/**
 * @description
 * Withdrawal settlement lifecycle: request, select provider, and finalize with
 * provider co-authorization. Finalization moves the full withdrawal amount
 * from the freelancer to the provider in one ledger batch and atomically
 * updates the provider's liquidity and track record.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
	"github.com/crosspay/settlement-service/internal/ledger"
)

// RequestWithdrawalParams carries the client inputs for RequestWithdrawal.
type RequestWithdrawalParams struct {
	Amount         uint64
	Method         domain.PayoutMethod
	RequestAddress addressing.Address
}

// RequestWithdrawal creates a pending withdrawal request at the derived
// address and consumes exactly one receive-side nonce. The freelancer must
// have a registered profile; the balance check is advisory, the authoritative
// debit happens at finalization.
func (s *Service) RequestWithdrawal(ctx context.Context, authority domain.Identity, params RequestWithdrawalParams) (*domain.WithdrawalRequest, error) {
	if err := s.consumeRateLimit(ctx, "withdrawal_request", authority, s.withdrawalLimitPerMinute); err != nil {
		return nil, err
	}
	if params.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !domain.ValidPayoutMethod(params.Method) {
		return nil, domain.ErrInvalidPayoutMethod
	}

	profile, err := s.repo.GetUserProfile(ctx, addressing.ForUserProfile(string(authority)))
	if err != nil {
		return nil, err
	}
	if profile.Authority != authority {
		return nil, domain.ErrUnauthorized
	}

	if balance, err := s.tokens.Balance(ctx, authority); err == nil && balance < params.Amount {
		return nil, ledger.ErrInsufficientFunds
	}

	expected := addressing.ForWithdrawalRequest(string(authority), profile.TotalReceived)
	if params.RequestAddress != expected {
		return nil, domain.ErrAddressMismatch
	}

	req := &domain.WithdrawalRequest{
		Address:    expected,
		Freelancer: authority,
		Amount:     params.Amount,
		Method:     params.Method,
		Status:     domain.WithdrawalPending,
		Nonce:      profile.TotalReceived,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateWithdrawalRequest(ctx, req, profile.Address); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=request_withdrawal freelancer=%s amount=%d method=%s nonce=%d", authority, params.Amount, params.Method, req.Nonce)
	s.publish(ctx, "withdrawal.requested", withdrawalEvent(req))
	return req, nil
}

// SelectProvider binds an active liquidity provider to a pending withdrawal.
// The provider must currently post at least the withdrawal amount; the check
// is a gate at selection time, not a reservation.
func (s *Service) SelectProvider(ctx context.Context, authority domain.Identity, requestAddress addressing.Address, providerAuthority domain.Identity) (*domain.WithdrawalRequest, error) {
	req, err := s.repo.GetWithdrawalRequest(ctx, requestAddress)
	if err != nil {
		return nil, err
	}
	if req.Freelancer != authority {
		return nil, domain.ErrUnauthorized
	}
	if req.Status != domain.WithdrawalPending {
		return nil, domain.ErrInvalidWithdrawalStatus
	}
	if req.SelectedProvider != nil {
		return nil, domain.ErrProviderAlreadySelected
	}

	provider, err := s.repo.GetLiquidityProvider(ctx, addressing.ForLiquidityProvider(string(providerAuthority)))
	if err != nil {
		return nil, err
	}
	if !provider.IsActive {
		return nil, domain.ErrProviderNotActive
	}
	if provider.AvailableLiquidity < req.Amount {
		return nil, domain.ErrInsufficientLiquidity
	}

	if err := s.repo.SelectWithdrawalProvider(ctx, requestAddress, providerAuthority); err != nil {
		return nil, err
	}
	req.Status = domain.WithdrawalProviderSelected
	req.SelectedProvider = &providerAuthority

	log.Printf("level=info component=app op=select_provider freelancer=%s provider=%s amount=%d", authority, providerAuthority, req.Amount)
	s.publish(ctx, "withdrawal.provider_selected", withdrawalEvent(req))
	return req, nil
}

// FinalizeWithdrawal settles a provider-selected withdrawal. Both parties
// must authorize: the freelancer who owns the request and the provider that
// was selected for it. One ledger batch moves the full amount from the
// freelancer to the provider; the status commit then marks the request
// completed and updates the provider's stats in the same repository
// transaction.
func (s *Service) FinalizeWithdrawal(ctx context.Context, freelancer, provider domain.Identity, requestAddress addressing.Address) (*domain.WithdrawalRequest, error) {
	req, err := s.repo.GetWithdrawalRequest(ctx, requestAddress)
	if err != nil {
		return nil, err
	}
	if addressing.ForWithdrawalRequest(string(req.Freelancer), req.Nonce) != requestAddress {
		return nil, domain.ErrAddressMismatch
	}
	if req.Freelancer != freelancer {
		return nil, domain.ErrUnauthorized
	}
	if req.Status != domain.WithdrawalProviderSelected || req.SelectedProvider == nil {
		return nil, domain.ErrInvalidWithdrawalStatus
	}
	if *req.SelectedProvider != provider {
		return nil, domain.ErrUnauthorized
	}

	providerAddr := addressing.ForLiquidityProvider(string(provider))
	if _, err := s.repo.GetLiquidityProvider(ctx, providerAddr); err != nil {
		return nil, err
	}

	reference := uuid.NewString()
	movements := []ledger.Movement{
		{From: req.Freelancer, To: provider, Amount: req.Amount, Reference: reference},
	}
	if err := s.tokens.Execute(ctx, movements); err != nil {
		return nil, err
	}

	completedAt := time.Now().UTC()
	if err := s.repo.FinalizeWithdrawal(ctx, requestAddress, providerAddr, req.Amount, completedAt); err != nil {
		s.compensate(ctx, movements, "finalize_withdrawal")
		return nil, err
	}

	req.Status = domain.WithdrawalCompleted
	req.CompletedAt = &completedAt

	log.Printf("level=info component=app op=finalize_withdrawal freelancer=%s provider=%s amount=%d", freelancer, provider, req.Amount)
	s.publish(ctx, "withdrawal.finalized", withdrawalEvent(req))
	return req, nil
}

// CancelWithdrawal moves a not-yet-completed withdrawal to the terminal
// cancelled state. Cancellation is allowed both before and after provider
// selection; no tokens have moved in either case.
func (s *Service) CancelWithdrawal(ctx context.Context, authority domain.Identity, requestAddress addressing.Address) error {
	req, err := s.repo.GetWithdrawalRequest(ctx, requestAddress)
	if err != nil {
		return err
	}
	if req.Freelancer != authority {
		return domain.ErrUnauthorized
	}
	if err := s.repo.CancelWithdrawal(ctx, requestAddress); err != nil {
		return err
	}
	req.Status = domain.WithdrawalCancelled
	log.Printf("level=info component=app op=cancel_withdrawal freelancer=%s nonce=%d", authority, req.Nonce)
	s.publish(ctx, "withdrawal.cancelled", withdrawalEvent(req))
	return nil
}

// GetWithdrawalRequest returns the withdrawal at the given address.
func (s *Service) GetWithdrawalRequest(ctx context.Context, address addressing.Address) (*domain.WithdrawalRequest, error) {
	return s.repo.GetWithdrawalRequest(ctx, address)
}

func withdrawalEvent(req *domain.WithdrawalRequest) domain.WithdrawalEvent {
	return domain.WithdrawalEvent{
		EventID:    uuid.New(),
		Address:    req.Address.String(),
		Freelancer: req.Freelancer,
		Amount:     req.Amount,
		Method:     req.Method,
		Status:     req.Status,
		Provider:   req.SelectedProvider,
		Nonce:      req.Nonce,
		Timestamp:  time.Now().UTC(),
	}
}
