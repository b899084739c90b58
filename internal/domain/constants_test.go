package domain

import (
	"math"
	"strings"
	"testing"
)

func TestPlatformFee(t *testing.T) {
	// 1000 tokens at 6-decimal scale; 0.5% of 1000 is 5 tokens.
	amount := uint64(1_000_000_000)
	if fee := PlatformFee(amount); fee != 5_000_000 {
		t.Fatalf("expected fee 5000000, got %d", fee)
	}
}

func TestPlatformFeeTruncates(t *testing.T) {
	// 0.5% of 199 base units is 0.995, truncated to 0.
	if fee := PlatformFee(199); fee != 0 {
		t.Fatalf("expected truncated fee 0, got %d", fee)
	}
	if fee := PlatformFee(200); fee != 1 {
		t.Fatalf("expected fee 1, got %d", fee)
	}
}

func TestPlatformFeeLargeAmounts(t *testing.T) {
	// The fee stays exact at the top of the uint64 range; a naive
	// multiply-then-divide would overflow here.
	amount := uint64(math.MaxUint64)
	if fee := PlatformFee(amount); fee != amount/200 {
		t.Fatalf("expected fee %d, got %d", amount/200, fee)
	}
	if net := NetAmount(amount); net != amount-amount/200 {
		t.Fatalf("expected net %d, got %d", amount-amount/200, net)
	}
}

func TestNetAmount(t *testing.T) {
	amount := uint64(1_000_000_000)
	if net := NetAmount(amount); net != 995_000_000 {
		t.Fatalf("expected net 995000000, got %d", net)
	}
}

func TestValidCountryCode(t *testing.T) {
	if !ValidCountryCode("USA") || !ValidCountryCode("NG") {
		t.Fatal("expected valid codes to pass")
	}
	if ValidCountryCode("") || ValidCountryCode("USAA") {
		t.Fatal("expected malformed codes to fail")
	}
}

func TestValidLocation(t *testing.T) {
	if !ValidLocation("Lagos, Nigeria") {
		t.Fatal("expected valid location to pass")
	}
	if ValidLocation("") || ValidLocation(strings.Repeat("a", 51)) {
		t.Fatal("expected malformed locations to fail")
	}
}

func TestParseKycHash(t *testing.T) {
	hash, ok := ParseKycHash(strings.Repeat("ab", 32))
	if !ok {
		t.Fatal("expected 64-hex-char hash to parse")
	}
	if hash[0] != 0xab || hash[31] != 0xab {
		t.Fatalf("unexpected decoded bytes: %v", hash)
	}

	for _, bad := range []string{"", "abcd", strings.Repeat("zz", 32)} {
		if _, ok := ParseKycHash(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
