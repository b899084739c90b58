/**
 * @description
 * Sentinel errors for the settlement core. Every failure aborts the whole
 * operation with no partial mutation; these sentinels let the API layer map
 * outcomes to status codes with errors.Is without string matching.
 */

package domain

import "errors"

var (
	// ErrUnauthorized is returned when the caller is not the required
	// authority for the operation (or, for finalize, not one of the two).
	ErrUnauthorized = errors.New("caller is not the required authority")

	// ErrAddressMismatch is returned when a supplied record address does not
	// match the deterministic derivation from the stated seeds.
	ErrAddressMismatch = errors.New("address does not match derived seeds")

	// ErrInvalidTransferStatus is returned when a transfer operation targets
	// a request outside the required source state.
	ErrInvalidTransferStatus = errors.New("invalid transfer status for this operation")

	// ErrInvalidWithdrawalStatus is the withdrawal-side state error.
	ErrInvalidWithdrawalStatus = errors.New("invalid withdrawal status for this operation")

	// ErrInvalidAmount rejects zero amounts (and zero FX rates).
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidCountryCode rejects malformed country codes.
	ErrInvalidCountryCode = errors.New("country code must be 1-3 characters")

	// ErrInvalidRole rejects unknown user roles at registration.
	ErrInvalidRole = errors.New("unknown user role")

	// ErrMissingReceiver rejects a transfer initiation without a receiver.
	ErrMissingReceiver = errors.New("receiver identity required")

	// ErrInvalidLocation rejects malformed provider locations.
	ErrInvalidLocation = errors.New("location must be 1-50 characters")

	// ErrInvalidRate rejects a zero FX rate at provider registration.
	ErrInvalidRate = errors.New("fx rate must be greater than zero")

	// ErrInvalidPayoutMethod rejects unknown withdrawal payout methods.
	ErrInvalidPayoutMethod = errors.New("unknown payout method")

	// ErrKycNotVerified gates transfer initiation on sender KYC.
	ErrKycNotVerified = errors.New("kyc verification required")

	// ErrProviderNotActive rejects selecting an inactive provider.
	ErrProviderNotActive = errors.New("liquidity provider is not active")

	// ErrProviderAlreadySelected guards the set-once provider slot.
	ErrProviderAlreadySelected = errors.New("provider already selected for this withdrawal")

	// ErrInsufficientLiquidity rejects selecting a provider advertising less
	// liquidity than the withdrawal amount.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity available from provider")
)
