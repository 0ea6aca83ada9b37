package seal

import (
	"bytes"
	"crypto/subtle"
	"testing"
)

func TestRand_LengthUniq(t *testing.T) {
	t.Parallel()
	const n = 48
	a, err := Rand(n)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := Rand(n)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}

func TestDeriveKey_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	pw := []byte("passphrase")
	k1 := DeriveKey(pw, []byte("salt-1"))
	k2 := DeriveKey(pw, []byte("salt-1"))
	if subtle.ConstantTimeCompare(k1, k2) != 1 {
		t.Fatalf("DeriveKey not deterministic")
	}
	if subtle.ConstantTimeCompare(k1, DeriveKey(pw, []byte("salt-2"))) != 0 {
		t.Fatalf("DeriveKey must change with salt")
	}
	if len(k1) != KeyLen {
		t.Fatalf("key len=%d", len(k1))
	}
}

func TestSealOpen_RoundtripAndNameBinding(t *testing.T) {
	t.Parallel()
	s, err := New(DeriveKey([]byte("pw"), []byte("salt")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pt := []byte(`{"token":"abc"}`)

	blob, err := s.Seal("auth-storage", pt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(blob, []byte("abc")) {
		t.Fatalf("plaintext leaked into blob")
	}
	out, err := s.Open("auth-storage", blob)
	if err != nil || !bytes.Equal(out, pt) {
		t.Fatalf("Open: %q %v", out, err)
	}
	if _, err := s.Open("token", blob); err == nil {
		t.Fatalf("Open under another name must fail")
	}
	if _, err := s.Open("auth-storage", blob[:4]); err != ErrShort {
		t.Fatalf("want ErrShort, got %v", err)
	}
}

func TestNew_BadKey(t *testing.T) {
	t.Parallel()
	if _, err := New([]byte("short")); err == nil {
		t.Fatalf("want error for short key")
	}
}
