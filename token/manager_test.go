package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func testManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authcore-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestIssueParseRoundTrip(t *testing.T) {
	m := testManager(t)

	signed, err := m.Issue("alice", PurposeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected subject alice, got %q", claims.Subject)
	}
	if claims.Purpose() != PurposeAccess {
		t.Fatalf("expected access purpose, got %q", claims.Purpose())
	}
	if claims.NewEmail != "" {
		t.Fatalf("expected no new_email claim, got %q", claims.NewEmail)
	}
}

func TestPurposeTagSurvivesRoundTrip(t *testing.T) {
	m := testManager(t)

	for _, purpose := range []Purpose{
		PurposePreAuth,
		PurposeEmailVerification,
		PurposePasswordReset,
		PurposeTwoFactorReset,
	} {
		signed, err := m.Issue("alice", purpose, time.Minute)
		if err != nil {
			t.Fatalf("Issue(%q) failed: %v", purpose, err)
		}
		claims, err := m.Parse(signed)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", purpose, err)
		}
		if claims.Purpose() != purpose {
			t.Fatalf("expected purpose %q, got %q", purpose, claims.Purpose())
		}
	}
}

func TestIssueEmailChangeCarriesNewEmail(t *testing.T) {
	m := testManager(t)

	signed, err := m.IssueEmailChange("alice", "alice@new.example", time.Minute)
	if err != nil {
		t.Fatalf("IssueEmailChange failed: %v", err)
	}
	claims, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Purpose() != PurposeChangeEmail {
		t.Fatalf("expected change_email purpose, got %q", claims.Purpose())
	}
	if claims.NewEmail != "alice@new.example" {
		t.Fatalf("expected new_email claim, got %q", claims.NewEmail)
	}

	if _, err := m.IssueEmailChange("alice", "  ", time.Minute); err == nil {
		t.Fatal("expected error for blank new email")
	}
}

func TestParseExpiredToken(t *testing.T) {
	m := testManager(t)

	signed, err := m.Issue("alice", PurposeAccess, time.Millisecond)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := m.Parse(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseTamperedToken(t *testing.T) {
	m := testManager(t)

	signed, err := m.Issue("alice", PurposeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected JWT structure: %q", signed)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := m.Parse(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := m.Parse("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	m := testManager(t)

	other, err := NewManager(Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "authcore-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	signed, err := other.Issue("alice", PurposeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Parse(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign secret, got %v", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	signed, err := m.Issue("alice", PurposePreAuth, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	claims, err := m.Parse(signed)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "alice" || claims.Purpose() != PurposePreAuth {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	m := testManager(t)

	if _, err := m.Issue("", PurposeAccess, time.Minute); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := m.Issue("alice", PurposeAccess, 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256}); err == nil {
		t.Fatal("expected error for hs256 without secret")
	}
	if _, err := NewManager(Config{SigningMethod: "rs256"}); err == nil {
		t.Fatal("expected error for unsupported method")
	}
	if _, err := NewManager(Config{
		SigningMethod: MethodHS256,
		Secret:        []byte("secret"),
		Leeway:        time.Hour,
	}); err == nil {
		t.Fatal("expected error for excessive leeway")
	}
}
