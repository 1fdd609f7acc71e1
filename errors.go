package authcore

import (
	"errors"

	"github.com/vaultop/authcore/password"
	"github.com/vaultop/authcore/token"
)

var (
	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike, so callers cannot tell which of the two failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when the account exists but has not
	// completed email verification.
	ErrAccountInactive = errors.New("account inactive")
	// ErrInvalidSession is returned when a presented refresh value matches
	// no live session.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrSessionNotFound is returned by session revocation when the id does
	// not exist or belongs to another user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound is an exported sentinel that UserStore implementations
	// must return for missing users.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned when a username or email is already taken.
	ErrDuplicateUser = errors.New("username or email already registered")
	// ErrSetupRequired is returned by EnableTwoFactor when no TOTP secret
	// has been provisioned yet.
	ErrSetupRequired = errors.New("two-factor setup required")
	// ErrInvalidCode is returned for TOTP codes outside the accepted window.
	ErrInvalidCode = errors.New("invalid two-factor code")
	// ErrInvalidTemporaryToken is returned by the 2FA step-up gate for
	// expired, malformed, and wrong-purpose pre-auth tokens alike.
	ErrInvalidTemporaryToken = errors.New("invalid temporary token")
	// ErrTokenTypeMismatch is returned when a token carries the wrong
	// purpose claim for the operation it was presented to.
	ErrTokenTypeMismatch = errors.New("token purpose mismatch")
	// ErrRegistrationDisabled is returned by Register when account creation
	// is switched off in the configuration.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrEngineNotReady is returned when a method is called on a nil or
	// partially constructed engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrPasswordTooShort is returned by the flows that accept a new
	// password when it is under 8 bytes. Map it to a client error.
	ErrPasswordTooShort = password.ErrSecretTooShort

	// ErrTokenInvalid covers bad signatures and malformed token structure.
	ErrTokenInvalid = token.ErrTokenInvalid
	// ErrTokenExpired covers tokens past their embedded expiry. Only
	// Authenticate surfaces it; purpose token flows collapse it into
	// ErrTokenInvalid.
	ErrTokenExpired = token.ErrTokenExpired
)
