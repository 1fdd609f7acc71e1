package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/vaultop/authcore/token"
)

// RequestPasswordReset mails a password_reset token to the account's
// address. Unknown addresses take the same path to the same nil return, so
// the endpoint cannot be used to probe for accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", "", nil, nil)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	reset, err := e.tokens.Issue(user.Username, token.PurposePasswordReset, e.config.ttlFor(token.PurposePasswordReset))
	if err != nil {
		log.Print("authcore: reset token issue failed: ", err)
		return nil
	}
	if err := e.notifier.Send(ctx, TemplateResetPassword, user.Email, map[string]string{
		"username": user.Username,
		"token":    reset,
	}); err != nil {
		log.Print("authcore: reset email send failed: ", err)
	}
	return nil
}

// ConfirmPasswordReset validates a password_reset token, stores the new
// hash, and revokes every session of the user so all devices must log in
// again. The mutation happens only after every check passes.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	claims, err := e.parsePurposeToken(tokenStr, token.PurposePasswordReset)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", err, nil)
		return err
	}

	user, err := e.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		return err
	}

	if err := e.store.DeleteAllForUser(ctx, user.ID); err != nil {
		return err
	}
	e.metricInc(MetricSessionsRevokedAll)
	e.emitAudit(ctx, auditEventSessionsRevokedAll, true, user.ID.String(), "", nil, nil)

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID.String(), "", nil, nil)
	return nil
}
