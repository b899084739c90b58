/**
 * @description
 * In-memory implementation of the `Repository` interface: an arena of
 * records indexed by derived address, guarded by a single mutex so that
 * every repository call is one atomic critical section. Used by tests and
 * local development; the semantics mirror PostgresRepository exactly.
 */

package store

import (
	"context"
	"sync"
	"time"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
)

// MemoryRepository is a process-local Repository.
type MemoryRepository struct {
	mu          sync.Mutex
	profiles    map[addressing.Address]*domain.UserProfile
	transfers   map[addressing.Address]*domain.TransferRequest
	providers   map[addressing.Address]*domain.LiquidityProvider
	withdrawals map[addressing.Address]*domain.WithdrawalRequest
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles:    make(map[addressing.Address]*domain.UserProfile),
		transfers:   make(map[addressing.Address]*domain.TransferRequest),
		providers:   make(map[addressing.Address]*domain.LiquidityProvider),
		withdrawals: make(map[addressing.Address]*domain.WithdrawalRequest),
	}
}

func copyProfile(p *domain.UserProfile) *domain.UserProfile {
	c := *p
	return &c
}

func copyTransfer(t *domain.TransferRequest) *domain.TransferRequest {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

func copyProvider(p *domain.LiquidityProvider) *domain.LiquidityProvider {
	c := *p
	return &c
}

func copyWithdrawal(w *domain.WithdrawalRequest) *domain.WithdrawalRequest {
	c := *w
	if w.SelectedProvider != nil {
		id := *w.SelectedProvider
		c.SelectedProvider = &id
	}
	if w.CompletedAt != nil {
		at := *w.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// CreateUserProfile allocates the profile record at its derived address.
func (r *MemoryRepository) CreateUserProfile(ctx context.Context, profile *domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[profile.Address]; ok {
		return ErrProfileExists
	}
	r.profiles[profile.Address] = copyProfile(profile)
	return nil
}

// GetUserProfile returns a copy of the profile at the given address.
func (r *MemoryRepository) GetUserProfile(ctx context.Context, address addressing.Address) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[address]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return copyProfile(p), nil
}

// UpdateKycStatus overwrites the KYC fields of the profile.
func (r *MemoryRepository) UpdateKycStatus(ctx context.Context, address addressing.Address, verified bool, hash [domain.KycHashLen]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[address]
	if !ok {
		return ErrProfileNotFound
	}
	p.KycVerified = verified
	p.KycHash = hash
	return nil
}

// CreateTransferRequest inserts the request and bumps the sender counter in
// one critical section. The counter must still equal the request nonce.
func (r *MemoryRepository) CreateTransferRequest(ctx context.Context, req *domain.TransferRequest, senderProfile addressing.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[senderProfile]
	if !ok {
		return ErrProfileNotFound
	}
	if p.TotalSent != req.Nonce {
		return domain.ErrAddressMismatch
	}
	if _, ok := r.transfers[req.Address]; ok {
		return domain.ErrAddressMismatch
	}
	r.transfers[req.Address] = copyTransfer(req)
	p.TotalSent++
	return nil
}

// GetTransferRequest returns a copy of the transfer request.
func (r *MemoryRepository) GetTransferRequest(ctx context.Context, address addressing.Address) (*domain.TransferRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[address]
	if !ok {
		return nil, ErrTransferNotFound
	}
	return copyTransfer(t), nil
}

// CompleteTransfer moves a pending request to completed.
func (r *MemoryRepository) CompleteTransfer(ctx context.Context, address addressing.Address, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[address]
	if !ok {
		return ErrTransferNotFound
	}
	if t.Status != domain.TransferPending {
		return domain.ErrInvalidTransferStatus
	}
	t.Status = domain.TransferCompleted
	at := completedAt
	t.CompletedAt = &at
	return nil
}

// CancelTransfer moves a pending request to cancelled.
func (r *MemoryRepository) CancelTransfer(ctx context.Context, address addressing.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[address]
	if !ok {
		return ErrTransferNotFound
	}
	if t.Status != domain.TransferPending {
		return domain.ErrInvalidTransferStatus
	}
	t.Status = domain.TransferCancelled
	return nil
}

// CreateLiquidityProvider allocates the provider record.
func (r *MemoryRepository) CreateLiquidityProvider(ctx context.Context, provider *domain.LiquidityProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[provider.Address]; ok {
		return ErrProviderExists
	}
	r.providers[provider.Address] = copyProvider(provider)
	return nil
}

// GetLiquidityProvider returns a copy of the provider record.
func (r *MemoryRepository) GetLiquidityProvider(ctx context.Context, address addressing.Address) (*domain.LiquidityProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[address]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return copyProvider(p), nil
}

// UpdateProviderAvailability overwrites liquidity and active flag
// unconditionally; there is no reservation against outstanding withdrawals.
func (r *MemoryRepository) UpdateProviderAvailability(ctx context.Context, address addressing.Address, liquidity uint64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[address]
	if !ok {
		return ErrProviderNotFound
	}
	p.AvailableLiquidity = liquidity
	p.IsActive = active
	return nil
}

// CreateWithdrawalRequest inserts the request and bumps the receiver counter
// in one critical section.
func (r *MemoryRepository) CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest, freelancerProfile addressing.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[freelancerProfile]
	if !ok {
		return ErrProfileNotFound
	}
	if p.TotalReceived != req.Nonce {
		return domain.ErrAddressMismatch
	}
	if _, ok := r.withdrawals[req.Address]; ok {
		return domain.ErrAddressMismatch
	}
	r.withdrawals[req.Address] = copyWithdrawal(req)
	p.TotalReceived++
	return nil
}

// GetWithdrawalRequest returns a copy of the withdrawal request.
func (r *MemoryRepository) GetWithdrawalRequest(ctx context.Context, address addressing.Address) (*domain.WithdrawalRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[address]
	if !ok {
		return nil, ErrWithdrawalNotFound
	}
	return copyWithdrawal(w), nil
}

// SelectWithdrawalProvider sets the provider slot exactly once on a pending
// request and advances it to provider_selected.
func (r *MemoryRepository) SelectWithdrawalProvider(ctx context.Context, address addressing.Address, provider domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[address]
	if !ok {
		return ErrWithdrawalNotFound
	}
	if w.Status != domain.WithdrawalPending {
		return domain.ErrInvalidWithdrawalStatus
	}
	id := provider
	w.SelectedProvider = &id
	w.Status = domain.WithdrawalProviderSelected
	return nil
}

// FinalizeWithdrawal completes the request and updates the provider
// statistics in one critical section.
func (r *MemoryRepository) FinalizeWithdrawal(ctx context.Context, address addressing.Address, providerAddress addressing.Address, amount uint64, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[address]
	if !ok {
		return ErrWithdrawalNotFound
	}
	p, ok := r.providers[providerAddress]
	if !ok {
		return ErrProviderNotFound
	}
	if w.Status != domain.WithdrawalProviderSelected {
		return domain.ErrInvalidWithdrawalStatus
	}
	w.Status = domain.WithdrawalCompleted
	at := completedAt
	w.CompletedAt = &at
	p.CompletedTransactions++
	p.TotalVolume += amount
	if p.AvailableLiquidity < amount {
		p.AvailableLiquidity = 0
	} else {
		p.AvailableLiquidity -= amount
	}
	return nil
}

// CancelWithdrawal moves a pending or provider_selected request to cancelled.
func (r *MemoryRepository) CancelWithdrawal(ctx context.Context, address addressing.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[address]
	if !ok {
		return ErrWithdrawalNotFound
	}
	if w.Status != domain.WithdrawalPending && w.Status != domain.WithdrawalProviderSelected {
		return domain.ErrInvalidWithdrawalStatus
	}
	w.Status = domain.WithdrawalCancelled
	return nil
}
