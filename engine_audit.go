package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventTwoFactorRequired     = "two_factor_required"
	auditEventTwoFactorSuccess      = "two_factor_success"
	auditEventTwoFactorFailure      = "two_factor_failure"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventLogout                = "logout"
	auditEventSessionRevoked        = "session_revoked"
	auditEventSessionsRevokedAll    = "sessions_revoked_all"
	auditEventRegistrationSuccess   = "registration_success"
	auditEventRegistrationDuplicate = "registration_duplicate"
	auditEventEmailVerified         = "email_verified"
	auditEventEmailVerifyFailure    = "email_verify_failure"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventPasswordChange        = "password_change"
	auditEventProfileUpdate         = "profile_update"
	auditEventEmailChangeRequest    = "email_change_request"
	auditEventEmailChangeConfirm    = "email_change_confirm"
	auditEventTwoFactorSetup        = "two_factor_setup"
	auditEventTwoFactorEnabled      = "two_factor_enabled"
	auditEventTwoFactorDisabled     = "two_factor_disabled"
	auditEventTwoFactorResetRequest = "two_factor_reset_request"
	auditEventTwoFactorResetConfirm = "two_factor_reset_confirm"
)

// AuditErrorCode is the stable error tag written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrInvalidSession     AuditErrorCode = "invalid_session"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicateUser      AuditErrorCode = "duplicate_user"
	auditErrSetupRequired      AuditErrorCode = "setup_required"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrInvalidTempToken   AuditErrorCode = "invalid_temporary_token"
	auditErrTypeMismatch       AuditErrorCode = "token_type_mismatch"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrInvalidSession):
		return auditErrInvalidSession
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrDuplicateUser):
		return auditErrDuplicateUser
	case errors.Is(err, ErrSetupRequired):
		return auditErrSetupRequired
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrInvalidTemporaryToken):
		return auditErrInvalidTempToken
	case errors.Is(err, ErrTokenTypeMismatch):
		return auditErrTypeMismatch
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired):
		return auditErrInvalidToken
	default:
		return auditErrInternal
	}
}
