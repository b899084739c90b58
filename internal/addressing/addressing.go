/**
 * @description
 * This package implements the deterministic addressing scheme used by every
 * record the settlement-service owns. A record's storage address is a pure
 * function of a fixed, ordered seed tuple (role tag first, then identity
 * keys, then a little-endian u64 nonce where one applies), so any client can
 * recompute an address without querying an index.
 *
 * @dependencies
 * - encoding/binary, encoding/hex, errors: Standard Go libraries.
 * - golang.org/x/crypto/blake2b: Collision-resistant hash for derivation.
 */

package addressing

import (
	"encoding/binary"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// Seed tags. Each record type derives its address under its own tag so that
// tuples from different record types can never collide.
const (
	UserProfileSeed       = "user_profile"
	TransferRequestSeed   = "transfer_request"
	WithdrawalRequestSeed = "withdrawal_request"
	LiquidityProviderSeed = "liquidity_provider"
)

// AddressLen is the size of a derived address in bytes.
const AddressLen = 32

// Address is the deterministic storage address of a record.
type Address [AddressLen]byte

// ErrInvalidAddress is returned when a supplied address string cannot be
// decoded into a 32-byte address.
var ErrInvalidAddress = errors.New("invalid address encoding")

// String returns the canonical hex encoding used on the wire and in storage.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Parse decodes the canonical hex encoding of an address.
func Parse(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != AddressLen {
		return Address{}, ErrInvalidAddress
	}
	copy(a[:], raw)
	return a, nil
}

// Derive computes the address for an ordered seed tuple. Each seed is
// length-prefixed before hashing so that distinct tuples can never produce
// the same byte stream (e.g. ("ab","c") vs ("a","bc")).
func Derive(seeds ...[]byte) Address {
	h, _ := blake2b.New256(nil)
	var prefix [4]byte
	for _, seed := range seeds {
		binary.LittleEndian.PutUint32(prefix[:], uint32(len(seed)))
		h.Write(prefix[:])
		h.Write(seed)
	}
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// nonceBytes encodes a nonce the way the seed ordering requires:
// fixed-width little-endian u64.
func nonceBytes(nonce uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], nonce)
	return b[:]
}

// ForUserProfile derives the address of the profile owned by authority.
func ForUserProfile(authority string) Address {
	return Derive([]byte(UserProfileSeed), []byte(authority))
}

// ForTransferRequest derives the address of the transfer request created by
// sender toward receiver at the given sender nonce.
func ForTransferRequest(sender, receiver string, nonce uint64) Address {
	return Derive([]byte(TransferRequestSeed), []byte(sender), []byte(receiver), nonceBytes(nonce))
}

// ForWithdrawalRequest derives the address of the withdrawal request created
// by freelancer at the given receiver nonce.
func ForWithdrawalRequest(freelancer string, nonce uint64) Address {
	return Derive([]byte(WithdrawalRequestSeed), []byte(freelancer), nonceBytes(nonce))
}

// ForLiquidityProvider derives the address of the provider record owned by
// authority.
func ForLiquidityProvider(authority string) Address {
	return Derive([]byte(LiquidityProviderSeed), []byte(authority))
}
