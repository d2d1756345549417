package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr, err := NewAddress(HodlPrefix, raw)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(HodlPrefix)) {
		t.Fatalf("encoded address %q lacks prefix", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("decoded bytes = %x, want %x", decoded.Bytes(), raw)
	}
	if !decoded.Equal(addr) {
		t.Fatal("decoded address not equal to original")
	}
}

func TestNewAddressRejectsBadLength(t *testing.T) {
	if _, err := NewAddress(HodlPrefix, make([]byte, 19)); err == nil {
		t.Fatal("19-byte payload accepted")
	}
	if _, err := NewAddress(HodlPrefix, nil); err == nil {
		t.Fatal("nil payload accepted")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	cases := []string{"", "hodl1", "not-bech32"}
	for _, tc := range cases {
		if _, err := DecodeAddress(tc); err == nil {
			t.Fatalf("DecodeAddress(%q) succeeded", tc)
		}
	}

	// A corrupted checksum must be rejected.
	valid := MustNewAddress(HodlPrefix, make([]byte, AddressLength)).String()
	corrupted := valid[:len(valid)-1]
	if valid[len(valid)-1] == 'q' {
		corrupted += "p"
	} else {
		corrupted += "q"
	}
	if _, err := DecodeAddress(corrupted); err == nil {
		t.Fatalf("DecodeAddress(%q) succeeded with bad checksum", corrupted)
	}
}

func TestArrayCopies(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[0] = 0x7f
	addr := MustNewAddress(HodlPrefix, raw)
	arr := addr.Array()
	arr[0] = 0x00
	if addr.Bytes()[0] != 0x7f {
		t.Fatal("mutating the array leaked into the address")
	}
}
