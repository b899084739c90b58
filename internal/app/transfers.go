/**
 * @description
 * Transfer escrow lifecycle: initiate and confirm (with fee deduction), plus
 * cancellation of a still-pending request. Confirmation moves tokens through
 * the Token Ledger as one atomic batch; the request status only advances
 * after the batch succeeds.
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

// InitiateTransferParams carries the client inputs for InitiateTransfer.
// RequestAddress is the address the client derived for the new request; the
// service re-derives it from the sender's current counter and rejects a
// mismatch.
type InitiateTransferParams struct {
	Amount         uint64
	Receiver       domain.Identity
	RequestAddress addressing.Address
}

// InitiateTransfer creates a pending transfer request at the derived address
// and consumes exactly one sender nonce. The sender must be registered and
// KYC-verified. The balance check here is advisory; the authoritative check
// happens inside the ledger batch at confirmation.
func (s *Service) InitiateTransfer(ctx context.Context, authority domain.Identity, params InitiateTransferParams) (*domain.TransferRequest, error) {
	if err := s.consumeRateLimit(ctx, "transfer_initiate", authority, s.transferLimitPerMinute); err != nil {
		return nil, err
	}
	if params.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	if params.Receiver == "" {
		return nil, domain.ErrMissingReceiver
	}

	profile, err := s.repo.GetUserProfile(ctx, addressing.ForUserProfile(string(authority)))
	if err != nil {
		return nil, err
	}
	if profile.Authority != authority {
		return nil, domain.ErrUnauthorized
	}
	if !profile.KycVerified {
		return nil, domain.ErrKycNotVerified
	}

	if balance, err := s.tokens.Balance(ctx, authority); err == nil && balance < params.Amount {
		return nil, ledger.ErrInsufficientFunds
	}

	expected := addressing.ForTransferRequest(string(authority), string(params.Receiver), profile.TotalSent)
	if params.RequestAddress != expected {
		return nil, domain.ErrAddressMismatch
	}

	req := &domain.TransferRequest{
		Address:   expected,
		Sender:    authority,
		Receiver:  params.Receiver,
		Amount:    params.Amount,
		Status:    domain.TransferPending,
		Nonce:     profile.TotalSent,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateTransferRequest(ctx, req, profile.Address); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=initiate_transfer sender=%s receiver=%s amount=%d nonce=%d", authority, params.Receiver, params.Amount, req.Nonce)
	s.publish(ctx, "transfer.initiated", transferEvent(req, 0))
	return req, nil
}

// ConfirmTransfer executes a pending transfer: one atomic ledger batch moves
// amount minus fee to the receiver and the fee to the treasury, then the request
// becomes completed. A ledger failure (including insufficient funds) leaves
// the request pending and balances untouched.
func (s *Service) ConfirmTransfer(ctx context.Context, authority domain.Identity, requestAddress addressing.Address) (*domain.TransferRequest, error) {
	req, err := s.repo.GetTransferRequest(ctx, requestAddress)
	if err != nil {
		return nil, err
	}
	// Guard against forged or stale references: the stored seeds must still
	// reproduce the supplied address.
	if addressing.ForTransferRequest(string(req.Sender), string(req.Receiver), req.Nonce) != requestAddress {
		return nil, domain.ErrAddressMismatch
	}
	if req.Sender != authority {
		return nil, domain.ErrUnauthorized
	}
	if req.Status != domain.TransferPending {
		return nil, domain.ErrInvalidTransferStatus
	}

	fee := domain.PlatformFee(req.Amount)
	net := req.Amount - fee
	reference := uuid.NewString()

	movements := []ledger.Movement{
		{From: req.Sender, To: req.Receiver, Amount: net, Reference: reference},
	}
	if fee > 0 {
		movements = append(movements, ledger.Movement{From: req.Sender, To: s.treasury, Amount: fee, Reference: reference})
	}
	if err := s.tokens.Execute(ctx, movements); err != nil {
		return nil, err
	}

	completedAt := time.Now().UTC()
	if err := s.repo.CompleteTransfer(ctx, requestAddress, completedAt); err != nil {
		// Tokens moved but the status commit failed; issue the compensating
		// reverse batch so no value is stranded.
		s.compensate(ctx, movements, "confirm_transfer")
		return nil, err
	}

	req.Status = domain.TransferCompleted
	req.CompletedAt = &completedAt

	log.Printf("level=info component=app op=confirm_transfer sender=%s receiver=%s amount=%d fee=%d", req.Sender, req.Receiver, req.Amount, fee)
	s.publish(ctx, "transfer.completed", transferEvent(req, fee))
	return req, nil
}

// CancelTransfer moves a still-pending request to the terminal cancelled
// state. Only the sender may cancel; no tokens have moved yet.
func (s *Service) CancelTransfer(ctx context.Context, authority domain.Identity, requestAddress addressing.Address) error {
	req, err := s.repo.GetTransferRequest(ctx, requestAddress)
	if err != nil {
		return err
	}
	if req.Sender != authority {
		return domain.ErrUnauthorized
	}
	if err := s.repo.CancelTransfer(ctx, requestAddress); err != nil {
		return err
	}
	req.Status = domain.TransferCancelled
	log.Printf("level=info component=app op=cancel_transfer sender=%s nonce=%d", req.Sender, req.Nonce)
	s.publish(ctx, "transfer.cancelled", transferEvent(req, 0))
	return nil
}

// GetTransferRequest returns the request at the given address.
func (s *Service) GetTransferRequest(ctx context.Context, address addressing.Address) (*domain.TransferRequest, error) {
	return s.repo.GetTransferRequest(ctx, address)
}

// compensate reverses a ledger batch after a post-move commit failure.
func (s *Service) compensate(ctx context.Context, movements []ledger.Movement, op string) {
	reversed := make([]ledger.Movement, len(movements))
	for i, m := range movements {
		reversed[i] = ledger.Movement{From: m.To, To: m.From, Amount: m.Amount, Reference: m.Reference}
	}
	if err := s.tokens.Execute(ctx, reversed); err != nil {
		log.Printf("level=error component=app op=%s msg=\"CRITICAL: compensating ledger batch failed; manual reconciliation required\" err=%v", op, err)
	}
}

func transferEvent(req *domain.TransferRequest, fee uint64) domain.TransferEvent {
	return domain.TransferEvent{
		EventID:   uuid.New(),
		Address:   req.Address.String(),
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Amount:    req.Amount,
		Fee:       fee,
		Status:    req.Status,
		Nonce:     req.Nonce,
		Timestamp: time.Now().UTC(),
	}
}
