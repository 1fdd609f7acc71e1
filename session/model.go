package session

import (
	"time"

	"github.com/google/uuid"
)

// Token is one persisted refresh token: the unit of "logged in on this
// device". The raw client value is never stored; SecretHash is its salted
// one-way digest.
type Token struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	SecretHash string    `json:"secret_hash"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
}

// Expired reports whether the token is no longer valid at now. A token whose
// expiry equals now is already expired.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
