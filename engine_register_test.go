package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vaultop/authcore/token"
)

func TestRegisterStartsInactive(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	notifier := &recordingNotifier{}
	engine := newTestEngine(t, cfg, users, notifier)

	user, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Active {
		t.Fatal("expected the account to start inactive")
	}
	if user.PasswordHash == "correct-password-123" || user.PasswordHash == "" {
		t.Fatal("expected the password to be stored hashed")
	}

	// Inactive accounts cannot log in.
	if _, err := engine.Login(context.Background(), "alice", "correct-password-123"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive before verification, got %v", err)
	}

	msg := notifier.last(t, TemplateVerifyEmail)
	if msg.Recipient != "alice@example.com" {
		t.Fatalf("expected verification mail to alice, got %q", msg.Recipient)
	}

	already, err := engine.VerifyEmail(context.Background(), msg.Vars["token"])
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if already {
		t.Fatal("expected a first-time verification")
	}

	if _, err := engine.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login after verification failed: %v", err)
	}

	// Verifying again reports the account as already active, mutating
	// nothing.
	already, err = engine.VerifyEmail(context.Background(), msg.Vars["token"])
	if err != nil {
		t.Fatalf("repeated VerifyEmail failed: %v", err)
	}
	if !already {
		t.Fatal("expected already-active on the second verification")
	}
}

func TestRegisterWithoutVerificationRequirement(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Registration.RequireEmailVerification = false
	users := newMockUserStore()
	notifier := &recordingNotifier{}
	engine := newTestEngine(t, cfg, users, notifier)

	user, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !user.Active {
		t.Fatal("expected an immediately active account")
	}
	if len(notifier.sent) != 0 {
		t.Fatal("expected no verification mail")
	}
}

func TestRegisterDisabled(t *testing.T) {
	cfg := testEngineConfig()
	cfg.Registration.Enabled = false
	users := newMockUserStore()
	engine := newTestEngine(t, cfg, users, nil)

	if _, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-password-123",
	}); !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("expected ErrRegistrationDisabled, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	engine := newTestEngine(t, cfg, users, nil)
	seedUser(t, engine, users, "alice", "alice@example.com", "correct-password-123")

	if _, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "another-password",
	}); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricRegistrationDuplicate] != 1 {
		t.Fatalf("expected 1 duplicate, got %d", snap.Counters[MetricRegistrationDuplicate])
	}
}

func TestRegisterShortPassword(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	engine := newTestEngine(t, cfg, users, nil)

	if _, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "short1",
	}); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	seedUser(t, engine, users, "bob", "bob@example.com", "correct-password-123")
	bob, err := users.GetByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if err := engine.ChangePassword(context.Background(), bob.ID, "correct-password-123", "short1"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestRegisterSurvivesNotifierFailure(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	notifier := &recordingNotifier{sendErr: errors.New("smtp down")}
	engine := newTestEngine(t, cfg, users, notifier)

	user, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if err != nil {
		t.Fatalf("Register must not fail on a send error: %v", err)
	}
	if _, err := users.GetByID(context.Background(), user.ID); err != nil {
		t.Fatalf("expected the account to exist: %v", err)
	}
}

func TestVerifyEmailBadToken(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	engine := newTestEngine(t, cfg, users, nil)
	seedUser(t, engine, users, "alice", "alice@example.com", "correct-password-123")

	if _, err := engine.VerifyEmail(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	// An access token is not a verification token.
	access, err := engine.tokens.Issue("alice", "", cfg.Token.AccessTTL)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := engine.VerifyEmail(context.Background(), access); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Fatalf("expected ErrTokenTypeMismatch, got %v", err)
	}
}

// An expired purpose token must fail exactly like a forged one in every
// confirm flow, so token errors never become an expiry oracle.
func TestPurposeTokenExpiryIndistinguishable(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	notifier := &recordingNotifier{}
	engine := newTestEngine(t, cfg, users, notifier)
	seedUser(t, engine, users, "alice", "alice@example.com", "correct-password-123")

	expiredToken := func(t *testing.T, purpose token.Purpose) string {
		t.Helper()
		var (
			tok string
			err error
		)
		if purpose == token.PurposeChangeEmail {
			tok, err = engine.tokens.IssueEmailChange("alice", "new@example.com", time.Millisecond)
		} else {
			tok, err = engine.tokens.Issue("alice", purpose, time.Millisecond)
		}
		if err != nil {
			t.Fatalf("issue failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
		return tok
	}

	flows := []struct {
		name    string
		purpose token.Purpose
		confirm func(tokenStr string) error
	}{
		{"verify email", token.PurposeEmailVerification, func(s string) error {
			_, err := engine.VerifyEmail(context.Background(), s)
			return err
		}},
		{"password reset", token.PurposePasswordReset, func(s string) error {
			return engine.ConfirmPasswordReset(context.Background(), s, "new-password-456")
		}},
		{"email change", token.PurposeChangeEmail, func(s string) error {
			return engine.ConfirmEmailChange(context.Background(), s)
		}},
		{"2fa reset", token.PurposeTwoFactorReset, func(s string) error {
			return engine.ConfirmTwoFactorReset(context.Background(), s)
		}},
	}

	for _, flow := range flows {
		t.Run(flow.name, func(t *testing.T) {
			expiredErr := flow.confirm(expiredToken(t, flow.purpose))
			forgedErr := flow.confirm("garbage")

			if !errors.Is(expiredErr, ErrTokenInvalid) {
				t.Fatalf("expired token: expected ErrTokenInvalid, got %v", expiredErr)
			}
			if !errors.Is(forgedErr, ErrTokenInvalid) {
				t.Fatalf("forged token: expected ErrTokenInvalid, got %v", forgedErr)
			}
			if errors.Is(expiredErr, ErrTokenExpired) || expiredErr.Error() != forgedErr.Error() {
				t.Fatalf("expired (%v) and forged (%v) tokens are distinguishable", expiredErr, forgedErr)
			}
		})
	}
}

func TestResendVerification(t *testing.T) {
	cfg := testEngineConfig()
	users := newMockUserStore()
	notifier := &recordingNotifier{}
	engine := newTestEngine(t, cfg, users, notifier)

	if _, err := engine.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-password-123",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	sentBefore := len(notifier.sent)

	if err := engine.ResendVerification(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	if len(notifier.sent) != sentBefore+1 {
		t.Fatal("expected one more verification mail")
	}

	// Unknown and already-verified addresses are silently ignored.
	if err := engine.ResendVerification(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	msg := notifier.last(t, TemplateVerifyEmail)
	if _, err := engine.VerifyEmail(context.Background(), msg.Vars["token"]); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	sentBefore = len(notifier.sent)
	if err := engine.ResendVerification(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	if len(notifier.sent) != sentBefore {
		t.Fatal("expected no mail for an already-active account")
	}
}
