package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vaultop/authcore/token"
)

// SetupTwoFactor provisions a fresh TOTP secret on the user, overwriting
// any prior secret. It does not enable 2FA; [Engine.EnableTwoFactor] does,
// after the user proves possession of the secret.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID uuid.UUID) (*TwoFactorSetup, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if err := e.users.SetTOTPSecret(ctx, user.ID, secret); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTwoFactorSetup, true, user.ID.String(), "", nil, nil)
	return &TwoFactorSetup{
		SecretBase32:    secret,
		ProvisioningURI: e.totp.ProvisionURI(secret, user.Username),
	}, nil
}

// EnableTwoFactor turns 2FA on after verifying one code against the
// provisioned secret. Without a prior SetupTwoFactor it fails with
// ErrSetupRequired.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID uuid.UUID, code string) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == "" {
		return ErrSetupRequired
	}

	ok, err := e.totp.VerifyCode(user.TOTPSecret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(ctx, auditEventTwoFactorEnabled, false, user.ID.String(), "", ErrInvalidCode, nil)
		return ErrInvalidCode
	}

	if err := e.users.EnableTwoFactor(ctx, user.ID); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, user.ID.String(), "", nil, nil)
	return nil
}

// DisableTwoFactor re-authenticates with the current password and clears
// the enabled flag and the secret together.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID uuid.UUID, plaintext string) error {
	if e == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, verr := e.hasher.Verify(plaintext, user.PasswordHash)
	if verr != nil || !ok {
		e.emitAudit(ctx, auditEventTwoFactorDisabled, false, user.ID.String(), "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.users.DisableTwoFactor(ctx, user.ID); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, user.ID.String(), "", nil, nil)
	return nil
}

// VerifyTwoFactorLogin completes a login stopped at the pre-auth step.
// Expired, malformed, and wrong-purpose tokens all fail with
// ErrInvalidTemporaryToken; a wrong code with ErrInvalidCode. On success it
// issues the access token and refresh session the password step withheld.
func (e *Engine) VerifyTwoFactorLogin(ctx context.Context, preAuthToken, code string) (*LoginResult, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Parse(preAuthToken)
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, "", "", ErrInvalidTemporaryToken, nil)
		return nil, ErrInvalidTemporaryToken
	}
	if claims.Purpose() != token.PurposePreAuth {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, "", "", ErrInvalidTemporaryToken, nil)
		return nil, ErrInvalidTemporaryToken
	}

	user, err := e.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidTemporaryToken
		}
		return nil, err
	}
	if !user.TwoFactorEnabled || user.TOTPSecret == "" {
		return nil, ErrInvalidTemporaryToken
	}

	ok, err := e.totp.VerifyCode(user.TOTPSecret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID.String(), "", ErrInvalidCode, nil)
		return nil, ErrInvalidCode
	}

	result, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricTwoFactorSuccess)
	e.emitAudit(ctx, auditEventTwoFactorSuccess, true, user.ID.String(), "", nil, nil)
	return result, nil
}

// RequestTwoFactorReset mails a 2fa_reset token, a password-less way to
// turn 2FA off for users locked out of their authenticator. Unknown
// addresses and accounts without 2FA take the same silent path.
func (e *Engine) RequestTwoFactorReset(ctx context.Context, email string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	e.metricInc(MetricTwoFactorResetRequest)
	e.emitAudit(ctx, auditEventTwoFactorResetRequest, true, "", "", nil, nil)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.TwoFactorEnabled {
		return nil
	}

	reset, err := e.tokens.Issue(user.Username, token.PurposeTwoFactorReset, e.config.ttlFor(token.PurposeTwoFactorReset))
	if err != nil {
		log.Print("authcore: 2fa reset token issue failed: ", err)
		return nil
	}
	if err := e.notifier.Send(ctx, TemplateReset2FA, user.Email, map[string]string{
		"username": user.Username,
		"token":    reset,
	}); err != nil {
		log.Print("authcore: 2fa reset email send failed: ", err)
	}
	return nil
}

// ConfirmTwoFactorReset validates a 2fa_reset token and clears the enabled
// flag and the secret together.
func (e *Engine) ConfirmTwoFactorReset(ctx context.Context, tokenStr string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	claims, err := e.parsePurposeToken(tokenStr, token.PurposeTwoFactorReset)
	if err != nil {
		e.emitAudit(ctx, auditEventTwoFactorResetConfirm, false, "", "", err, nil)
		return err
	}

	user, err := e.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return err
	}

	if err := e.users.DisableTwoFactor(ctx, user.ID); err != nil {
		return err
	}

	e.metricInc(MetricTwoFactorResetConfirm)
	e.emitAudit(ctx, auditEventTwoFactorResetConfirm, true, user.ID.String(), "", nil, nil)
	return nil
}
