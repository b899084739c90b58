/**
 * @description
 * This file defines the core domain records owned by the settlement-service:
 * user profiles, transfer requests, liquidity providers, and withdrawal
 * requests. Every record carries the deterministic address it was created
 * at, so callers can always re-derive and verify it from the stored seeds.
 *
 * @notes
 * - Amounts are unsigned 64-bit integers in base token units (6-decimal
 *   stablecoin scale), which avoids floating-point inaccuracies.
 * - Counters on UserProfile double as uniqueness nonces for derived request
 *   addresses: they advance by exactly one per successful initiate/request.
 */

package domain

import (
	"time"

	"github.com/crosspay/settlement-service/internal/addressing"
)

// Identity is an opaque public identity (e.g. a base58-encoded public key)
// verified by the execution environment before an operation reaches the core.
type Identity string

// UserRole fixes what a profile was created for.
type UserRole string

const (
	RoleSender   UserRole = "sender"
	RoleReceiver UserRole = "receiver"
	RoleBoth     UserRole = "both"
)

// ValidRole reports whether r is one of the known user roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleSender, RoleReceiver, RoleBoth:
		return true
	}
	return false
}

// TransferStatus is the lifecycle state of a TransferRequest.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferCancelled TransferStatus = "cancelled"
)

// WithdrawalStatus is the lifecycle state of a WithdrawalRequest.
type WithdrawalStatus string

const (
	WithdrawalPending          WithdrawalStatus = "pending"
	WithdrawalProviderSelected WithdrawalStatus = "provider_selected"
	WithdrawalCompleted        WithdrawalStatus = "completed"
	WithdrawalCancelled        WithdrawalStatus = "cancelled"
)

// PayoutMethod tags the off-ledger rail a provider will use to deliver fiat.
// The rail itself is outside this service; only the tag is recorded.
type PayoutMethod string

const (
	PayoutMobileMoney  PayoutMethod = "mobile_money"
	PayoutBankTransfer PayoutMethod = "bank_transfer"
	PayoutCash         PayoutMethod = "cash"
)

// ValidPayoutMethod reports whether m is one of the known payout rails.
func ValidPayoutMethod(m PayoutMethod) bool {
	switch m {
	case PayoutMobileMoney, PayoutBankTransfer, PayoutCash:
		return true
	}
	return false
}

// UserProfile is the per-identity registration record.
// TotalSent and TotalReceived are lifetime counts of initiated transfers and
// requested withdrawals; they advance by exactly one per successful call and
// serve as the uniqueness nonce for derived request addresses.
type UserProfile struct {
	Address       addressing.Address `json:"address"`
	Authority     Identity           `json:"authority"`
	Role          UserRole           `json:"role"`
	CountryCode   string             `json:"country_code"`
	KycVerified   bool               `json:"kyc_verified"`
	KycHash       [32]byte           `json:"-"`
	TotalSent     uint64             `json:"total_sent"`
	TotalReceived uint64             `json:"total_received"`
	CreatedAt     time.Time          `json:"created_at"`
}

// TransferRequest is the escrow record for one initiated transfer.
// Amount is immutable after creation; the address is derived from
// (sender, receiver, nonce) so a confirm can never target a stale record.
type TransferRequest struct {
	Address     addressing.Address `json:"address"`
	Sender      Identity           `json:"sender"`
	Receiver    Identity           `json:"receiver"`
	Amount      uint64             `json:"amount"`
	Status      TransferStatus     `json:"status"`
	Nonce       uint64             `json:"nonce"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// LiquidityProvider is the registry record for a provider identity.
type LiquidityProvider struct {
	Address               addressing.Address `json:"address"`
	Authority             Identity           `json:"authority"`
	Location              string             `json:"location"`
	FxRate                uint64             `json:"fx_rate"` // local units per base token, 6-decimal fixed point
	TrustScore            uint16             `json:"trust_score"`
	AvailableLiquidity    uint64             `json:"available_liquidity"`
	IsActive              bool               `json:"is_active"`
	CompletedTransactions uint64             `json:"completed_transactions"`
	TotalVolume           uint64             `json:"total_volume"`
	CreatedAt             time.Time          `json:"created_at"`
}

// WithdrawalRequest is the settlement record for one cash-out.
// SelectedProvider is set exactly once, on the pending to provider_selected
// transition, and is immutable afterwards.
type WithdrawalRequest struct {
	Address          addressing.Address `json:"address"`
	Freelancer       Identity           `json:"freelancer"`
	Amount           uint64             `json:"amount"`
	Method           PayoutMethod       `json:"method"`
	Status           WithdrawalStatus   `json:"status"`
	SelectedProvider *Identity          `json:"selected_provider,omitempty"`
	Nonce            uint64             `json:"nonce"`
	CreatedAt        time.Time          `json:"created_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}
