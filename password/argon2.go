package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minSecretBytes        = 8
	algorithmID           = "argon2id"
)

// ErrMalformedDigest is returned by Verify when the stored digest cannot be
// parsed as a PHC argon2id string. Callers treat it as a verification
// failure, never as a fault.
var ErrMalformedDigest = errors.New("malformed password digest")

// ErrSecretTooShort is returned by Hash for secrets under 8 bytes. It is a
// caller input error, not a hashing fault.
var ErrSecretTooShort = errors.New("secret shorter than 8 bytes")

// Config holds the argon2id cost parameters.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies secrets with argon2id. The same Hasher is used
// for account passwords and for raw refresh-token values: both are salted,
// one-way, and verified with a constant-time comparison.
type Hasher struct {
	config Config
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// NewHasher validates cfg and returns a ready Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives a fresh salted digest in PHC string format
// ($argon2id$v=..$m=..,t=..,p=..$salt$hash). The result is
// non-deterministic: hashing the same secret twice yields different strings.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) < minSecretBytes {
		return "", ErrSecretTooShort
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest for secret using the parameters embedded in
// encoded and compares in constant time. A digest that fails to parse
// returns (false, ErrMalformedDigest); callers handle both outcomes as a
// mismatch.
func (h *Hasher) Verify(secret string, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(secret),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the Hasher is configured with.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	if h.config.Memory > parsed.memory {
		return true, nil
	}
	if h.config.Time > parsed.time {
		return true, nil
	}
	if h.config.Parallelism > parsed.parallelism {
		return true, nil
	}
	if h.config.KeyLength != parsed.keyLength {
		return true, nil
	}

	return false, nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("argon2 memory below minimum")
	}
	if cfg.Time < minTimeCost {
		return errors.New("argon2 time cost below minimum")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("argon2 parallelism below minimum")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("argon2 salt length below minimum")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("argon2 key length below minimum")
	}
	return nil
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, ErrMalformedDigest
	}
	if version != argon2.Version {
		return nil, ErrMalformedDigest
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return nil, ErrMalformedDigest
	}
	memory, err := parseParam(params[0], "m=")
	if err != nil {
		return nil, ErrMalformedDigest
	}
	timeCost, err := parseParam(params[1], "t=")
	if err != nil {
		return nil, ErrMalformedDigest
	}
	parallelism, err := parseParam(params[2], "p=")
	if err != nil || parallelism > 255 {
		return nil, ErrMalformedDigest
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, ErrMalformedDigest
	}
	hash, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, ErrMalformedDigest
	}
	if len(salt) == 0 || len(hash) == 0 {
		return nil, ErrMalformedDigest
	}

	return &parsedPHC{
		memory:      uint32(memory),
		time:        uint32(timeCost),
		parallelism: uint8(parallelism),
		salt:        salt,
		hash:        hash,
		keyLength:   uint32(len(hash)),
	}, nil
}

func parseParam(s, prefix string) (uint64, error) {
	if !strings.HasPrefix(s, prefix) {
		return 0, ErrMalformedDigest
	}
	return strconv.ParseUint(strings.TrimPrefix(s, prefix), 10, 32)
}
