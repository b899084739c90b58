/**
 * @description
 * Protocol constants and the fixed-point helpers built on them: the platform
 * fee schedule, the default trust score, and input length limits. These values
 * are part of the settlement protocol, not deployment configuration, so they
 * live here rather than in internal/config.
 */

package domain

import "encoding/hex"

const (
	// PlatformFeeBps is the platform fee withheld at transfer confirmation,
	// in basis points (50 bps = 0.5%).
	PlatformFeeBps uint64 = 50

	// BasisPointsDivisor converts basis points into a fraction.
	BasisPointsDivisor uint64 = 10_000

	// DefaultTrustScore is assigned to every newly registered liquidity
	// provider (70.00% on a 0-10000 scale).
	DefaultTrustScore uint16 = 7000

	// MaxCountryCodeLen bounds the ISO-style country code on a user profile.
	MaxCountryCodeLen = 3

	// MaxLocationLen bounds the free-text location on a provider record.
	MaxLocationLen = 50

	// KycHashLen is the size of the opaque verification hash supplied by the
	// external identity verifier.
	KycHashLen = 32
)

// PlatformFee returns the fee withheld for a given amount, using integer
// truncation. The 50/10000 ratio reduces to 1/200, so dividing first is
// exact over the full uint64 range.
func PlatformFee(amount uint64) uint64 {
	return amount / (BasisPointsDivisor / PlatformFeeBps)
}

// NetAmount returns the amount credited to the receiver after the platform
// fee is withheld.
func NetAmount(amount uint64) uint64 {
	return amount - PlatformFee(amount)
}

// ValidCountryCode reports whether code is a well-formed country code:
// non-empty and at most three characters.
func ValidCountryCode(code string) bool {
	return len(code) > 0 && len(code) <= MaxCountryCodeLen
}

// ValidLocation reports whether location fits the provider record.
func ValidLocation(location string) bool {
	return len(location) > 0 && len(location) <= MaxLocationLen
}

// ParseKycHash decodes the hex encoding of a 32-byte KYC verification hash.
func ParseKycHash(s string) ([KycHashLen]byte, bool) {
	var out [KycHashLen]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != KycHashLen {
		return out, false
	}
	copy(out[:], raw)
	return out, true
}
