package addressing

import (
	"encoding/binary"
	"testing"
)

func TestDeriveIsDeterministic(t *testing.T) {
	a := ForTransferRequest("sender_pub", "receiver_pub", 7)
	b := ForTransferRequest("sender_pub", "receiver_pub", 7)
	if a != b {
		t.Fatalf("expected identical addresses, got %s and %s", a, b)
	}
}

func TestDeriveDistinguishesSeedTuples(t *testing.T) {
	base := ForTransferRequest("alice", "bob", 0)

	variants := []Address{
		ForTransferRequest("alice", "bob", 1),
		ForTransferRequest("bob", "alice", 0),
		ForWithdrawalRequest("alice", 0),
		ForUserProfile("alice"),
		ForLiquidityProvider("alice"),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base address %s", i, base)
		}
	}
}

func TestDeriveLengthPrefixPreventsBoundaryShifts(t *testing.T) {
	// ("ab","c") and ("a","bc") concatenate to the same bytes; the length
	// prefix must keep them apart.
	a := Derive([]byte("ab"), []byte("c"))
	b := Derive([]byte("a"), []byte("bc"))
	if a == b {
		t.Fatal("expected distinct addresses for shifted seed boundaries")
	}
}

func TestNonceEncodingIsLittleEndianFixedWidth(t *testing.T) {
	got := nonceBytes(1)
	if len(got) != 8 {
		t.Fatalf("expected 8-byte nonce encoding, got %d bytes", len(got))
	}
	if binary.LittleEndian.Uint64(got) != 1 {
		t.Fatalf("expected little-endian round trip of 1, got %v", got)
	}
	if got[0] != 1 || got[7] != 0 {
		t.Fatalf("expected little-endian byte order, got %v", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := ForUserProfile("some_authority")
	parsed, err := Parse(original.String())
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed != original {
		t.Fatalf("expected %s after round trip, got %s", original, parsed)
	}
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "zz", "abcd", "not-hex-at-all"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("expected error parsing %q", c)
		}
	}
}
