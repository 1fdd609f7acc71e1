package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	// Keep memory low so the suite stays fast.
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	encoded, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("expected argon2id PHC digest, got %q", encoded)
	}

	ok, err := h.Verify("correct-password-123", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = h.Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected mismatching password to fail")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct digests for the same password")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	for _, encoded := range []string{
		"",
		"not-a-digest",
		"$argon2id$v=19$m=8192,t=1,p=1$short",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		ok, err := h.Verify("password", encoded)
		if ok {
			t.Fatalf("expected no match for %q", encoded)
		}
		if !errors.Is(err, ErrMalformedDigest) {
			t.Fatalf("expected ErrMalformedDigest for %q, got %v", encoded, err)
		}
	}
}

func TestVerifyWrongVersion(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	encoded, err := h.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	wrongVersion := strings.Replace(encoded, "$v=19$", "$v=18$", 1)
	if _, err := h.Verify("version-test", wrongVersion); !errors.Is(err, ErrMalformedDigest) {
		t.Fatalf("expected ErrMalformedDigest for wrong version, got %v", err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := testConfig()
	h, err := NewHasher(weak)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	encoded, err := h.Hash("password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	upgrade, err := h.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if upgrade {
		t.Fatal("digest at current parameters should not need an upgrade")
	}

	stronger := weak
	stronger.Memory = 64 * 1024
	h2, err := NewHasher(stronger)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	upgrade, err = h2.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if !upgrade {
		t.Fatal("digest at weaker parameters should need an upgrade")
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SaltLength = 4
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected error for tiny salt length")
	}

	cfg = testConfig()
	cfg.Time = 0
	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected error for zero time cost")
	}
}

func TestHashRejectsShortSecret(t *testing.T) {
	h, err := NewHasher(testConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	if _, err := h.Hash("seven77"); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
	if _, err := h.Hash("eight888"); err != nil {
		t.Fatalf("eight bytes should hash: %v", err)
	}
}
