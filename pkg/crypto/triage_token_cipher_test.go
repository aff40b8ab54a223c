package crypto

import (
	"strings"
	"testing"
)

func TestTokenCipher_RoundTrip(t *testing.T) {
	c, err := NewTokenCipher("secret")
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := c.Seal("ya29.token")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "ya29") {
		t.Fatalf("Seal() = %q", sealed)
	}
	got, err := c.Open(sealed)
	if err != nil || got != "ya29.token" {
		t.Errorf("Open() = %q, %v", got, err)
	}
}

func TestTokenCipher_PlainValuesPassThrough(t *testing.T) {
	c, _ := NewTokenCipher("secret")
	if got, err := c.Open("legacy-plain"); err != nil || got != "legacy-plain" {
		t.Errorf("Open(plain) = %q, %v", got, err)
	}
}

func TestTokenCipher_Nil(t *testing.T) {
	c, err := NewTokenCipher("")
	if err != nil || c != nil {
		t.Fatalf("NewTokenCipher(\"\") = %v, %v", c, err)
	}
	if got, _ := c.Seal("x"); got != "x" {
		t.Errorf("nil Seal() = %q", got)
	}
	if _, err := c.Open(sealedPrefix + "AAAA"); err == nil {
		t.Errorf("nil Open(sealed) should fail")
	}
}

func TestTokenCipher_WrongKey(t *testing.T) {
	a, _ := NewTokenCipher("a")
	b, _ := NewTokenCipher("b")
	sealed, _ := a.Seal("token")
	if _, err := b.Open(sealed); err != ErrDecryptionFailed {
		t.Errorf("Open() with wrong key err = %v", err)
	}
}
