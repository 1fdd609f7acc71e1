package authcore

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/vaultop/authcore/internal/audit"
)

// UserRecord is the full account record exchanged with the [UserStore].
// TOTPSecret is a base32 string, present only while 2FA is being set up or
// is enabled; TwoFactorEnabled implies a non-empty secret.
type UserRecord struct {
	ID               uuid.UUID
	Username         string
	Email            string
	NewEmail         string
	FullName         string
	PasswordHash     string
	TOTPSecret       string
	TwoFactorEnabled bool
	Active           bool
	Superuser        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateUserInput is the input for [UserStore.Create].
type CreateUserInput struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	Active       bool
}

// UserStore is the interface callers implement to connect the engine to
// their user database. Missing users must be reported as [ErrUserNotFound]
// and unique-constraint violations on Create as [ErrDuplicateUser].
// DisableTwoFactor must clear the secret and the enabled flag in one
// store-level operation, and PromotePendingEmail must move NewEmail into
// Email and clear NewEmail likewise.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (UserRecord, error)
	GetByEmail(ctx context.Context, email string) (UserRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (UserRecord, error)
	Create(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, newHash string) error
	UpdateFullName(ctx context.Context, id uuid.UUID, fullName string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTwoFactor(ctx context.Context, id uuid.UUID) error
	DisableTwoFactor(ctx context.Context, id uuid.UUID) error
	SetPendingEmail(ctx context.Context, id uuid.UUID, newEmail string) error
	PromotePendingEmail(ctx context.Context, id uuid.UUID) error
}

// LoginResult is returned by [Engine.Login] and [Engine.VerifyTwoFactorLogin].
// When TwoFactorRequired is set, only PreAuthToken is populated; otherwise
// the access token and the raw refresh value (for the HTTP-only cookie) are.
type LoginResult struct {
	User UserRecord

	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time

	TwoFactorRequired bool
	PreAuthToken      string
}

// RefreshResult is returned by [Engine.Refresh]. RefreshToken is populated
// only when rotation is enabled and the secret was replaced.
type RefreshResult struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	Rotated          bool
}

// SessionInfo is one row of [Engine.ListSessions]. Current marks the
// session matching the caller's presented refresh value.
type SessionInfo struct {
	ID        uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	UserAgent string
	IPAddress string
	Current   bool
}

// TwoFactorSetup is returned by [Engine.SetupTwoFactor]: the base32 secret
// and the otpauth:// URI an authenticator app can scan.
type TwoFactorSetup struct {
	SecretBase32    string
	ProvisioningURI string
}

// RegisterInput is the input for [Engine.Register].
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
