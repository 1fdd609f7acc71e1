package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/vaultop/authcore/token"
)

// Register creates an account. With RequireEmailVerification the account
// starts inactive and a verification token is mailed out; a send failure is
// logged and never undoes the creation.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (UserRecord, error) {
	if e == nil || e.hasher == nil {
		return UserRecord{}, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		return UserRecord{}, ErrRegistrationDisabled
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return UserRecord{}, err
	}

	user, err := e.users.Create(ctx, CreateUserInput{
		Username:     input.Username,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
		Active:       !e.config.Registration.RequireEmailVerification,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			e.metricInc(MetricRegistrationDuplicate)
			e.emitAudit(ctx, auditEventRegistrationDuplicate, false, "", "", ErrDuplicateUser, func() map[string]string {
				return map[string]string{"username": input.Username}
			})
			return UserRecord{}, ErrDuplicateUser
		}
		return UserRecord{}, err
	}

	if e.config.Registration.RequireEmailVerification {
		e.sendVerification(ctx, user)
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationSuccess, true, user.ID.String(), "", nil, nil)
	return user, nil
}

// VerifyEmail confirms an email verification token and activates the
// account. Confirming an already-active account is not an error; the
// returned flag reports it so callers can answer "already active".
func (e *Engine) VerifyEmail(ctx context.Context, tokenStr string) (alreadyActive bool, err error) {
	if e == nil || e.tokens == nil {
		return false, ErrEngineNotReady
	}

	claims, err := e.parsePurposeToken(tokenStr, token.PurposeEmailVerification)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerifyFailure, false, "", "", err, nil)
		return false, err
	}

	user, err := e.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return false, err
	}

	if user.Active {
		e.emitAudit(ctx, auditEventEmailVerified, true, user.ID.String(), "", nil, func() map[string]string {
			return map[string]string{"already_active": "true"}
		})
		return true, nil
	}

	if err := e.users.SetActive(ctx, user.ID, true); err != nil {
		return false, err
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerified, true, user.ID.String(), "", nil, nil)
	return false, nil
}

// ResendVerification re-mails the verification token. The outcome is the
// same whether the address is unknown, already verified, or pending, so
// the endpoint leaks nothing about registered accounts.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.Active {
		return nil
	}

	e.sendVerification(ctx, user)
	return nil
}

// sendVerification issues an email_verification token and mails it,
// best-effort.
func (e *Engine) sendVerification(ctx context.Context, user UserRecord) {
	verification, err := e.tokens.Issue(user.Username, token.PurposeEmailVerification, e.config.ttlFor(token.PurposeEmailVerification))
	if err != nil {
		log.Print("authcore: verification token issue failed: ", err)
		return
	}
	if err := e.notifier.Send(ctx, TemplateVerifyEmail, user.Email, map[string]string{
		"username": user.Username,
		"token":    verification,
	}); err != nil {
		log.Print("authcore: verification email send failed: ", err)
	}
}

// parsePurposeToken parses tokenStr and requires the exact purpose claim.
// Every parse failure comes back as ErrTokenInvalid so callers cannot tell
// an expired token from a forged one; a wrong purpose is
// ErrTokenTypeMismatch.
func (e *Engine) parsePurposeToken(tokenStr string, want token.Purpose) (*token.Claims, error) {
	claims, err := e.tokens.Parse(tokenStr)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose() != want {
		return nil, ErrTokenTypeMismatch
	}
	return claims, nil
}
