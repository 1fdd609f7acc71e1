package authcore

import (
	"strings"
	"testing"
	"time"
)

// RFC 6238 appendix B vectors, 8 digits, 30 second period.
func TestVerifyCodeRFCVectorsSHA1(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "authcore",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      0,
	})
	secret := b32.EncodeToString([]byte("12345678901234567890"))
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA1 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestVerifyCodeRFCVectorsSHA256(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "authcore",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA256",
		Skew:      0,
	})
	secret := b32.EncodeToString([]byte("12345678901234567890123456789012"))
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "46119246"},
		{1111111109, "68084774"},
		{1111111111, "67062674"},
		{1234567890, "91819424"},
		{2000000000, "90698825"},
		{20000000000, "77737706"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA256 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestVerifyCodeRFCVectorsSHA512(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "authcore",
		Digits:    8,
		Period:    30,
		Algorithm: "SHA512",
		Skew:      0,
	})
	secret := b32.EncodeToString([]byte("1234567890123456789012345678901234567890123456789012345678901234"))
	cases := []struct {
		ts   int64
		code string
	}{
		{59, "90693936"},
		{1111111109, "25091201"},
		{1111111111, "99943326"},
		{1234567890, "93441116"},
		{2000000000, "38618901"},
		{20000000000, "47863826"},
	}

	for _, tc := range cases {
		ok, err := m.VerifyCode(secret, tc.code, time.Unix(tc.ts, 0))
		if err != nil || !ok {
			t.Fatalf("SHA512 vector failed at t=%d, ok=%v err=%v", tc.ts, ok, err)
		}
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "authcore",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	key, err := b32.DecodeString(secret)
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}

	now := time.Unix(2000000000, 0)
	counter := now.Unix() / 30

	for _, offset := range []int64{-1, 0, 1} {
		code, err := hotpCode(key, counter+offset, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		ok, err := m.VerifyCode(secret, code, now)
		if err != nil || !ok {
			t.Fatalf("expected code at offset %d to verify, ok=%v err=%v", offset, ok, err)
		}
	}

	// Two steps out is beyond the window.
	code, err := hotpCode(key, counter+2, 6, "SHA1")
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	if ok, err := m.VerifyCode(secret, code, now); err != nil || ok {
		t.Fatalf("expected code outside the window to fail, ok=%v err=%v", ok, err)
	}
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "authcore",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	for _, code := range []string{"", "12345", "1234567", "abcdef", "12 456"} {
		ok, err := m.VerifyCode(secret, code, time.Now())
		if err != nil {
			t.Fatalf("VerifyCode(%q) failed: %v", code, err)
		}
		if ok {
			t.Fatalf("expected %q to be rejected", code)
		}
	}

	// An undecodable secret is an error, not a silent mismatch.
	if _, err := m.VerifyCode("!!!not-base32!!!", "123456", time.Now()); err == nil {
		t.Fatal("expected an error for an unusable secret")
	}
}

func TestProvisionURI(t *testing.T) {
	m := newTOTPManager(TOTPConfig{
		Issuer:    "authcore",
		Digits:    6,
		Period:    30,
		Algorithm: "SHA1",
		Skew:      1,
	})
	secret, err := m.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	uri := m.ProvisionURI(secret, "alice")
	if !strings.HasPrefix(uri, "otpauth://totp/authcore:alice?") {
		t.Fatalf("unexpected URI prefix: %q", uri)
	}
	for _, want := range []string{"secret=" + secret, "issuer=authcore", "digits=6", "period=30", "algorithm=SHA1"} {
		if !strings.Contains(uri, want) {
			t.Fatalf("expected URI to contain %q, got %q", want, uri)
		}
	}
}
