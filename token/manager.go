package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm for issued tokens.
type SigningMethod string

const (
	// MethodHS256 signs with an HMAC-SHA256 shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

// Purpose is the type claim that scopes a token to a single operation. The
// zero value marks an ordinary access token and is omitted from the encoded
// claims.
type Purpose string

const (
	// PurposeAccess is an ordinary access token (no type claim).
	PurposeAccess Purpose = ""
	// PurposePreAuth marks "password verified, 2FA pending".
	PurposePreAuth Purpose = "pre_auth"
	// PurposeEmailVerification authorizes activating a freshly registered account.
	PurposeEmailVerification Purpose = "email_verification"
	// PurposePasswordReset authorizes setting a new password.
	PurposePasswordReset Purpose = "password_reset"
	// PurposeChangeEmail authorizes promoting a pending email address.
	PurposeChangeEmail Purpose = "change_email"
	// PurposeTwoFactorReset authorizes a password-less 2FA disable.
	PurposeTwoFactorReset Purpose = "2fa_reset"
)

var (
	// ErrTokenInvalid covers bad signatures and malformed structure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired covers tokens past their embedded expiry. Flows that
	// consume purpose tokens surface it identically to ErrTokenInvalid.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the signed claims bundle carried by every token the engine
// issues: subject (username), optional purpose tag, optional pending email
// for change-email tokens, plus the registered expiry/issued-at claims.
type Claims struct {
	Type     string `json:"type,omitempty"`
	NewEmail string `json:"new_email,omitempty"`
	jwt.RegisteredClaims
}

// Purpose returns the purpose tag of the claims, PurposeAccess when absent.
func (c *Claims) Purpose() Purpose {
	if c == nil {
		return PurposeAccess
	}
	return Purpose(c.Type)
}

// Config holds the signing material shared by all token purposes. It is
// constructed once at startup and passed explicitly; there is no ambient
// signing state.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte // hs256 shared secret
	PrivateKey    []byte // ed25519
	PublicKey     []byte // ed25519
	Issuer        string
	Leeway        time.Duration
}

// Manager issues and parses signed claims tokens. One Manager serves every
// purpose; it never enforces the purpose claim itself. Callers check
// [Claims.Purpose] against the purpose they expect.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("hs256 requires a shared secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires a public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a token for subject with the given purpose and absolute expiry
// now+ttl.
func (m *Manager) Issue(subject string, purpose Purpose, ttl time.Duration) (string, error) {
	return m.issue(subject, purpose, "", ttl)
}

// IssueEmailChange signs a change-email token carrying the pending address
// as an extra claim, so confirmation can detect a superseded request.
func (m *Manager) IssueEmailChange(subject, newEmail string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(newEmail) == "" {
		return "", errors.New("change-email token requires a new email claim")
	}
	return m.issue(subject, PurposeChangeEmail, newEmail, ttl)
}

func (m *Manager) issue(subject string, purpose Purpose, newEmail string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token requires a subject")
	}
	if ttl <= 0 {
		return "", errors.New("token requires a positive ttl")
	}

	now := time.Now()
	claims := Claims{
		Type:     string(purpose),
		NewEmail: newEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	tok := jwt.NewWithClaims(m.method(), claims)
	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

// Parse verifies the signature and expiry of tokenStr and returns its
// claims. It distinguishes ErrTokenExpired from ErrTokenInvalid so callers
// can log the difference; user-facing flows must surface both identically to
// avoid an expiry oracle.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.Secret, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.Secret, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
