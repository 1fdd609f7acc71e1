package authcore

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vaultop/authcore/token"
)

// Config is the complete engine configuration. It is cloned on Build and
// never mutated afterwards; the engine carries no ambient global state.
type Config struct {
	Token        TokenConfig
	Session      SessionConfig
	Cookie       CookieConfig
	Password     PasswordConfig
	TOTP         TOTPConfig
	Registration RegistrationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the signed token codec and the validity window of
// every token purpose.
type TokenConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte // hs256 shared secret
	PrivateKey    []byte // ed25519 PEM
	PublicKey     []byte // ed25519 PEM
	Issuer        string
	Leeway        time.Duration

	AccessTTL            time.Duration
	PreAuthTTL           time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	EmailChangeTTL       time.Duration
	TwoFactorResetTTL    time.Duration
}

// SessionConfig configures the refresh token store.
type SessionConfig struct {
	RedisPrefix string
	RefreshTTL  time.Duration
	// RotateOnUse replaces the refresh secret on every successful Refresh.
	// Off by default: a session keeps one opaque value for its whole
	// lifetime, and expiry is never extended either way.
	RotateOnUse bool
}

// CookieConfig describes the refresh token cookie set by the HTTP helpers.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// PasswordConfig holds the Argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// TOTPConfig configures the two-factor code parameters shared by
// provisioning and verification.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string
}

// RegistrationConfig controls account creation.
type RegistrationConfig struct {
	Enabled bool
	// RequireEmailVerification creates accounts inactive until the
	// verification token is confirmed.
	RequireEmailVerification bool
}

// AuditConfig controls the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the engine defaults. Adjust fields as needed and
// pass the result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod:        "hs256",
			AccessTTL:            30 * time.Minute,
			PreAuthTTL:           5 * time.Minute,
			EmailVerificationTTL: 24 * time.Hour,
			PasswordResetTTL:     15 * time.Minute,
			EmailChangeTTL:       1 * time.Hour,
			TwoFactorResetTTL:    15 * time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix: "ac",
			RefreshTTL:  7 * 24 * time.Hour,
			RotateOnUse: false,
		},
		Cookie: CookieConfig{
			Name:     "refresh_token",
			Path:     "/",
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer:    "authcore",
			Digits:    6,
			Period:    30,
			Skew:      1,
			Algorithm: "SHA1",
		},
		Registration: RegistrationConfig{
			Enabled:                  true,
			RequireEmailVerification: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ttlFor returns the validity window of the given token purpose.
func (c *Config) ttlFor(p token.Purpose) time.Duration {
	switch p {
	case token.PurposePreAuth:
		return c.Token.PreAuthTTL
	case token.PurposeEmailVerification:
		return c.Token.EmailVerificationTTL
	case token.PurposePasswordReset:
		return c.Token.PasswordResetTTL
	case token.PurposeChangeEmail:
		return c.Token.EmailChangeTTL
	case token.PurposeTwoFactorReset:
		return c.Token.TwoFactorResetTTL
	default:
		return c.Token.AccessTTL
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internal consistency. Build calls
// it; callers constructing a Config by hand can call it early.
func (c *Config) Validate() error {
	switch c.Token.SigningMethod {
	case "hs256":
		if len(c.Token.Secret) < 32 {
			return errors.New("hs256 requires Secret of at least 32 bytes")
		}
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported token signing method")
	}

	for _, ttl := range []time.Duration{
		c.Token.AccessTTL,
		c.Token.PreAuthTTL,
		c.Token.EmailVerificationTTL,
		c.Token.PasswordResetTTL,
		c.Token.EmailChangeTTL,
		c.Token.TwoFactorResetTTL,
	} {
		if ttl <= 0 {
			return errors.New("token TTLs must be > 0")
		}
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}

	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must be > 0")
	}

	if c.Cookie.Name == "" {
		return errors.New("Cookie Name is required")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("TOTP Skew must be >= 0")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
		// valid (empty treated as SHA1)
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
