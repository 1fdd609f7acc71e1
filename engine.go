package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vaultop/authcore/internal"
	internalaudit "github.com/vaultop/authcore/internal/audit"
	"github.com/vaultop/authcore/password"
	"github.com/vaultop/authcore/session"
	"github.com/vaultop/authcore/token"
)

// Engine is the credential and session lifecycle engine. All fields are
// set once by [Builder.Build]; the engine itself holds no mutable state.
// Everything mutable lives in the user store and the refresh token store.
type Engine struct {
	config   Config
	users    UserStore
	notifier Notifier
	hasher   *password.Hasher
	tokens   *token.Manager
	totp     *totpManager
	store    *session.Store
	metrics  *Metrics
	audit    *internalaudit.Dispatcher
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login authenticates a username/password pair. Unknown users and wrong
// passwords produce the same ErrInvalidCredentials. Users with 2FA enabled
// receive only a pre-auth token and TwoFactorRequired=true; completing the
// login is [Engine.VerifyTwoFactorLogin]'s job. Everyone else gets an
// access token plus a freshly persisted refresh session.
func (e *Engine) Login(ctx context.Context, username, plaintext string) (*LoginResult, error) {
	if e == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"username": username}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, verr := e.hasher.Verify(plaintext, user.PasswordHash)
	if verr != nil || !ok {
		// A malformed stored digest is indistinguishable from a wrong
		// password on purpose.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID.String(), "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	e.maybeUpgradeHash(ctx, user, plaintext)

	if user.TwoFactorEnabled {
		preAuth, err := e.tokens.Issue(user.Username, token.PurposePreAuth, e.config.ttlFor(token.PurposePreAuth))
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditEventTwoFactorRequired, true, user.ID.String(), "", nil, nil)
		return &LoginResult{
			User:              user,
			TwoFactorRequired: true,
			PreAuthToken:      preAuth,
		}, nil
	}

	result, err := e.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID.String(), "", nil, nil)
	return result, nil
}

// issueSession mints an ordinary access token and persists a new refresh
// session for user. Shared by Login and VerifyTwoFactorLogin.
func (e *Engine) issueSession(ctx context.Context, user UserRecord) (*LoginResult, error) {
	access, err := e.tokens.Issue(user.Username, token.PurposeAccess, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}

	raw, expiresAt, _, err := e.createRefreshSession(ctx, user.ID, time.Now().Add(e.config.Session.RefreshTTL))
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User:             user,
		AccessToken:      access,
		RefreshToken:     raw,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// createRefreshSession generates an id-prefixed opaque value and saves the
// session row. The expiry is fixed at creation and never extended.
func (e *Engine) createRefreshSession(ctx context.Context, userID uuid.UUID, expiresAt time.Time) (string, time.Time, *session.Token, error) {
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return "", time.Time{}, nil, err
	}
	raw := internal.EncodeRefreshValue(uuid.New(), secret)

	tok, err := e.store.Save(ctx, userID, raw, expiresAt,
		userAgentFromContext(ctx), clientIPFromContext(ctx))
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return raw, tok.ExpiresAt, tok, nil
}

// Refresh exchanges a presented refresh value for a fresh access token.
// Unknown, expired, and unverifiable values all produce ErrInvalidSession.
// When Session.RotateOnUse is set the opaque value is replaced too, keeping
// the original expiry.
func (e *Engine) Refresh(ctx context.Context, rawValue string) (*RefreshResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	tok, err := e.store.FindByRawValue(ctx, rawValue)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrInvalidSession, nil)
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	user, err := e.users.GetByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, tok.UserID.String(), tok.ID.String(), ErrInvalidSession, nil)
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if !user.Active {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID.String(), tok.ID.String(), ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	access, err := e.tokens.Issue(user.Username, token.PurposeAccess, e.config.Token.AccessTTL)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		AccessToken:      access,
		RefreshExpiresAt: tok.ExpiresAt,
	}

	if e.config.Session.RotateOnUse {
		newRaw, _, _, err := e.createRefreshSession(ctx, user.ID, tok.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if err := e.store.Delete(ctx, tok.ID, tok.UserID); err != nil && !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
		result.RefreshToken = newRaw
		result.Rotated = true
		e.metricInc(MetricRefreshRotated)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID.String(), tok.ID.String(), nil, nil)
	return result, nil
}

// Logout revokes the session matching the presented refresh value. It is
// idempotent and never fails on a miss; the HTTP layer clears the cookie
// unconditionally either way.
func (e *Engine) Logout(ctx context.Context, rawValue string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if rawValue == "" {
		return nil
	}

	tok, err := e.store.FindByRawValue(ctx, rawValue)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := e.store.Delete(ctx, tok.ID, tok.UserID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, tok.UserID.String(), tok.ID.String(), nil, nil)
	return nil
}

// ListSessions enumerates a user's live sessions ordered by creation time.
// presentedRaw, when non-empty, marks the matching row Current.
func (e *Engine) ListSessions(ctx context.Context, userID uuid.UUID, presentedRaw string) ([]SessionInfo, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	tokens, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	currentID, haveID := uuid.Nil, false
	if presentedRaw != "" {
		if id, _, err := internal.DecodeRefreshValue(presentedRaw); err == nil {
			currentID, haveID = id, true
		}
	}

	out := make([]SessionInfo, 0, len(tokens))
	for _, tok := range tokens {
		info := SessionInfo{
			ID:        tok.ID,
			CreatedAt: tok.CreatedAt,
			ExpiresAt: tok.ExpiresAt,
			UserAgent: tok.UserAgent,
			IPAddress: tok.IPAddress,
		}
		switch {
		case haveID:
			info.Current = tok.ID == currentID
		case presentedRaw != "":
			// Legacy values without an id prefix fall back to hash
			// verification against each row.
			ok, verr := e.hasher.Verify(presentedRaw, tok.SecretHash)
			info.Current = verr == nil && ok
		}
		out = append(out, info)
	}
	return out, nil
}

// RevokeSession deletes one session by id, only when it belongs to userID.
// A foreign or unknown id is ErrSessionNotFound and mutates nothing.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.Delete(ctx, sessionID, userID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID.String(), sessionID.String(), nil, nil)
	return nil
}

// Authenticate validates a bearer access token and resolves its user.
// Purpose-scoped tokens (pre-auth included) are rejected with
// ErrTokenTypeMismatch: they never double as access tokens.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (UserRecord, error) {
	if e == nil || e.tokens == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}
	}()

	claims, err := e.tokens.Parse(accessToken)
	if err != nil {
		return UserRecord{}, err
	}
	if claims.Purpose() != token.PurposeAccess {
		return UserRecord{}, ErrTokenTypeMismatch
	}

	user, err := e.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		return UserRecord{}, err
	}
	if !user.Active {
		return UserRecord{}, ErrAccountInactive
	}
	return user, nil
}

// ChangePassword re-authenticates with the current password and stores a
// new hash. Existing sessions stay valid; password reset is the flow that
// revokes them.
func (e *Engine) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if e == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, verr := e.hasher.Verify(current, user.PasswordHash)
	if verr != nil || !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, user.ID.String(), "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	newHash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, user.ID.String(), "", nil, nil)
	return nil
}

// UpdateProfile replaces the user's display name and returns the updated
// record.
func (e *Engine) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName string) (UserRecord, error) {
	if e == nil || e.users == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}
	if err := e.users.UpdateFullName(ctx, user.ID, fullName); err != nil {
		return UserRecord{}, err
	}
	user.FullName = fullName

	e.emitAudit(ctx, auditEventProfileUpdate, true, user.ID.String(), "", nil, nil)
	return user, nil
}

// maybeUpgradeHash transparently rehashes the password after a successful
// verification when the stored parameters are weaker than configured.
// Best-effort: failures are logged and the login proceeds.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user UserRecord, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := e.hasher.Hash(plaintext)
	if err != nil {
		log.Print("authcore: password rehash failed: ", err)
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		log.Print("authcore: password rehash store failed: ", err)
	}
}
