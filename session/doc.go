// Package session stores refresh tokens in Redis. Tokens are kept hashed
// with the same hasher used for passwords; the plaintext value exists only
// in the client's hands. Lookups by raw value favor an O(1) id-indexed path
// and fall back to a full scan for values minted without an id prefix.
package session
