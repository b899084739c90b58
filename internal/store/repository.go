/**
 * @description
 * This file defines the `Repository` interface: the contract for persisting
 * the records the settlement core owns. Methods that must be indivisible
 * (request creation with the counter bump, withdrawal finalization with the
 * provider statistics) are modeled as single repository calls so that an
 * implementation can wrap them in one transaction.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - internal/addressing, internal/domain: Address and record types.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/crosspay/settlement-service/internal/addressing"
	"github.com/crosspay/settlement-service/internal/domain"
)

var (
	ErrProfileNotFound    = errors.New("user profile not found")
	ErrProfileExists      = errors.New("user profile already exists")
	ErrTransferNotFound   = errors.New("transfer request not found")
	ErrProviderNotFound   = errors.New("liquidity provider not found")
	ErrProviderExists     = errors.New("liquidity provider already exists")
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")
)

// Repository defines the set of methods for interacting with settlement
// storage. State-transition methods are conditional: they fail with the
// matching domain error when the record is not in the required source state,
// and mutate nothing in that case.
type Repository interface {
	// User profile methods
	CreateUserProfile(ctx context.Context, profile *domain.UserProfile) error
	GetUserProfile(ctx context.Context, address addressing.Address) (*domain.UserProfile, error)
	UpdateKycStatus(ctx context.Context, address addressing.Address, verified bool, hash [domain.KycHashLen]byte) error

	// Transfer request methods.
	// CreateTransferRequest inserts the pending request and increments the
	// sender profile's total_sent by exactly one, atomically. The profile's
	// counter must still equal the request nonce; a concurrent initiate that
	// advanced it first surfaces as domain.ErrAddressMismatch.
	CreateTransferRequest(ctx context.Context, req *domain.TransferRequest, senderProfile addressing.Address) error
	GetTransferRequest(ctx context.Context, address addressing.Address) (*domain.TransferRequest, error)
	CompleteTransfer(ctx context.Context, address addressing.Address, completedAt time.Time) error
	CancelTransfer(ctx context.Context, address addressing.Address) error

	// Liquidity provider methods
	CreateLiquidityProvider(ctx context.Context, provider *domain.LiquidityProvider) error
	GetLiquidityProvider(ctx context.Context, address addressing.Address) (*domain.LiquidityProvider, error)
	UpdateProviderAvailability(ctx context.Context, address addressing.Address, liquidity uint64, active bool) error

	// Withdrawal request methods.
	// CreateWithdrawalRequest mirrors CreateTransferRequest for the receiver
	// side (total_received). FinalizeWithdrawal completes the request and
	// updates the provider's statistics (completed_transactions+1,
	// total_volume+amount, available_liquidity saturating-subtracted) in the
	// same atomic step.
	CreateWithdrawalRequest(ctx context.Context, req *domain.WithdrawalRequest, freelancerProfile addressing.Address) error
	GetWithdrawalRequest(ctx context.Context, address addressing.Address) (*domain.WithdrawalRequest, error)
	SelectWithdrawalProvider(ctx context.Context, address addressing.Address, provider domain.Identity) error
	FinalizeWithdrawal(ctx context.Context, address addressing.Address, providerAddress addressing.Address, amount uint64, completedAt time.Time) error
	CancelWithdrawal(ctx context.Context, address addressing.Address) error
}
