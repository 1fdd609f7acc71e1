package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vaultop/authcore/internal"
)

// ErrNotFound is returned when no stored token matches the lookup. Expired
// rows are deleted during lookup and reported as not found.
var ErrNotFound = errors.New("refresh token not found")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Hasher is the subset of the password hasher the store needs: refresh
// secrets are stored exactly like passwords.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// Store persists refresh tokens in Redis: one JSON row per token under
// <prefix>:t:<id>, a per-user index set under <prefix>:u:<userID>, and a
// global index set under <prefix>:all for the scan-based lookup path.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	hasher Hasher
}

// NewStore creates a refresh-token store with the given key prefix.
func NewStore(client redis.UniversalClient, prefix string, hasher Hasher) *Store {
	if prefix == "" {
		prefix = "ac"
	}
	return &Store{redis: client, prefix: prefix, hasher: hasher}
}

func (s *Store) tokenKey(id uuid.UUID) string {
	return s.prefix + ":t:" + id.String()
}

func (s *Store) userKey(userID uuid.UUID) string {
	return s.prefix + ":u:" + userID.String()
}

func (s *Store) allKey() string {
	return s.prefix + ":all"
}

// Save hashes rawValue and persists a new row expiring at expiresAt. The
// row id is the public id prefix embedded in rawValue, so later lookups are
// O(1); values without a decodable prefix get a fresh id and remain
// reachable only through the scan path.
func (s *Store) Save(ctx context.Context, userID uuid.UUID, rawValue string, expiresAt time.Time, userAgent, ipAddress string) (*Token, error) {
	id, _, err := internal.DecodeRefreshValue(rawValue)
	if err != nil {
		id = uuid.New()
	}

	digest, err := s.hasher.Hash(rawValue)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tok := &Token{
		ID:         id,
		UserID:     userID,
		SecretHash: digest,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return nil, err
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil, errors.New("refresh token expiry not in the future")
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(tok.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(userID), tok.ID.String())
		pipe.SAdd(ctx, s.allKey(), tok.ID.String())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return tok, nil
}

// Find retrieves a row by id. Expired rows are removed and reported as
// ErrNotFound.
func (s *Store) Find(ctx context.Context, id uuid.UUID) (*Token, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, ErrNotFound
	}

	if tok.Expired(time.Now()) {
		if err := s.remove(ctx, &tok); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return &tok, nil
}

// FindByRawValue resolves the row matching a presented opaque value. When
// the value carries an id prefix the lookup is a single GET plus one
// constant-time verification; otherwise every stored row is scanned and
// verified in turn, preserving the legacy behavior for values minted
// without a prefix.
func (s *Store) FindByRawValue(ctx context.Context, rawValue string) (*Token, error) {
	id, _, err := internal.DecodeRefreshValue(rawValue)
	if err == nil {
		tok, err := s.Find(ctx, id)
		if err != nil {
			return nil, err
		}
		ok, verr := s.hasher.Verify(rawValue, tok.SecretHash)
		if verr != nil || !ok {
			return nil, ErrNotFound
		}
		return tok, nil
	}

	return s.scanByRawValue(ctx, rawValue)
}

func (s *Store) scanByRawValue(ctx context.Context, rawValue string) (*Token, error) {
	ids, err := s.redis.SMembers(ctx, s.allKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		data, err := s.redis.Get(ctx, s.tokenKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Row already expired out from under the index.
				s.pruneIndex(ctx, id)
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		var tok Token
		if err := json.Unmarshal(data, &tok); err != nil {
			continue
		}

		ok, verr := s.hasher.Verify(rawValue, tok.SecretHash)
		if verr != nil || !ok {
			continue
		}

		if tok.Expired(time.Now()) {
			if err := s.remove(ctx, &tok); err != nil {
				return nil, err
			}
			return nil, ErrNotFound
		}
		return &tok, nil
	}

	return nil, ErrNotFound
}

// ListByUser returns the user's live rows ordered by creation time.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Token, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	tokens := make([]*Token, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		tok, err := s.Find(ctx, id)
		if errors.Is(err, ErrNotFound) {
			_ = s.redis.SRem(ctx, s.userKey(userID), idStr).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.Before(tokens[j].CreatedAt)
	})

	return tokens, nil
}

// Delete removes the row only when it belongs to owningUserID; otherwise
// ErrNotFound, leaving the row untouched.
func (s *Store) Delete(ctx context.Context, id, owningUserID uuid.UUID) error {
	tok, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	if tok.UserID != owningUserID {
		return ErrNotFound
	}
	return s.remove(ctx, tok)
}

// DeleteAllForUser revokes every session of one user, e.g. after a password
// reset.
func (s *Store) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, idStr := range ids {
			id, err := uuid.Parse(idStr)
			if err != nil {
				continue
			}
			pipe.Del(ctx, s.tokenKey(id))
			pipe.SRem(ctx, s.allKey(), idStr)
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, tok *Token) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.tokenKey(tok.ID))
		pipe.SRem(ctx, s.userKey(tok.UserID), tok.ID.String())
		pipe.SRem(ctx, s.allKey(), tok.ID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// pruneIndex drops a dangling id from the global index. Best-effort: the row
// itself is already gone.
func (s *Store) pruneIndex(ctx context.Context, id uuid.UUID) {
	_ = s.redis.SRem(ctx, s.allKey(), id.String()).Err()
}
