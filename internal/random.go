package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	// RefreshSecretSize is the random component of a refresh token.
	RefreshSecretSize = 32
	refreshRawSize    = 16 + RefreshSecretSize
)

// ErrNotIDPrefixed is returned by DecodeRefreshValue for opaque values that
// do not carry a decodable token id, e.g. values minted by an older
// deployment. Callers fall back to the linear-scan lookup.
var ErrNotIDPrefixed = errors.New("refresh value has no id prefix")

// NewRefreshSecret returns the random secret component of a refresh token.
func NewRefreshSecret() ([RefreshSecretSize]byte, error) {
	var secret [RefreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeRefreshValue packs the public token id and the secret into the
// opaque value handed to the client: base64url(id ‖ secret), no padding. The
// id lets storage look the row up in O(1); the secret alone proves
// possession.
func EncodeRefreshValue(id uuid.UUID, secret [RefreshSecretSize]byte) string {
	var raw [refreshRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

// DecodeRefreshValue splits an opaque client value back into token id and
// secret. Values of the wrong shape yield ErrNotIDPrefixed rather than a
// hard failure so the caller can try the scan path.
func DecodeRefreshValue(value string) (uuid.UUID, [RefreshSecretSize]byte, error) {
	var secret [RefreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return uuid.Nil, secret, ErrNotIDPrefixed
	}
	if len(raw) != refreshRawSize {
		return uuid.Nil, secret, ErrNotIDPrefixed
	}

	var id uuid.UUID
	copy(id[:], raw[:16])
	copy(secret[:], raw[16:])

	return id, secret, nil
}
