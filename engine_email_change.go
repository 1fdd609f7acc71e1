package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/vaultop/authcore/token"
)

// RequestEmailChange re-authenticates with the current password, records
// the pending address, and mails a change_email token to it. The current
// address gets a security alert. At most one pending change exists; a new
// request supersedes the previous one.
func (e *Engine) RequestEmailChange(ctx context.Context, userID uuid.UUID, plaintext, newEmail string) error {
	if e == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, verr := e.hasher.Verify(plaintext, user.PasswordHash)
	if verr != nil || !ok {
		e.emitAudit(ctx, auditEventEmailChangeRequest, false, user.ID.String(), "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if _, err := e.users.GetByEmail(ctx, newEmail); err == nil {
		return ErrDuplicateUser
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if err := e.users.SetPendingEmail(ctx, user.ID, newEmail); err != nil {
		return err
	}

	change, err := e.tokens.IssueEmailChange(user.Username, newEmail, e.config.ttlFor(token.PurposeChangeEmail))
	if err != nil {
		return err
	}

	if err := e.notifier.Send(ctx, TemplateChangeEmail, newEmail, map[string]string{
		"username": user.Username,
		"token":    change,
	}); err != nil {
		log.Print("authcore: email change send failed: ", err)
	}
	if err := e.notifier.Send(ctx, TemplateSecurityAlert, user.Email, map[string]string{
		"username":  user.Username,
		"new_email": newEmail,
	}); err != nil {
		log.Print("authcore: security alert send failed: ", err)
	}

	e.metricInc(MetricEmailChangeRequest)
	e.emitAudit(ctx, auditEventEmailChangeRequest, true, user.ID.String(), "", nil, nil)
	return nil
}

// ConfirmEmailChange validates a change_email token and promotes the
// pending address. The token's new_email claim must still equal the user's
// pending address: a token from a superseded request is rejected as
// invalid.
func (e *Engine) ConfirmEmailChange(ctx context.Context, tokenStr string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	claims, err := e.parsePurposeToken(tokenStr, token.PurposeChangeEmail)
	if err != nil {
		e.metricInc(MetricEmailChangeConfirmFailure)
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, "", "", err, nil)
		return err
	}

	user, err := e.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return err
	}

	if claims.NewEmail == "" || claims.NewEmail != user.NewEmail {
		e.metricInc(MetricEmailChangeConfirmFailure)
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, user.ID.String(), "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "stale_request"}
		})
		return ErrTokenInvalid
	}

	if err := e.users.PromotePendingEmail(ctx, user.ID); err != nil {
		return err
	}

	e.metricInc(MetricEmailChangeConfirmSuccess)
	e.emitAudit(ctx, auditEventEmailChangeConfirm, true, user.ID.String(), "", nil, nil)
	return nil
}
