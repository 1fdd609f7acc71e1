// Package token is the signed token codec shared by access tokens and every
// purpose-scoped single-use token (pre-auth, email verification, password
// reset, change email, 2FA reset).
//
// One [Manager] serves all purposes. The codec verifies signature and expiry
// only; audience scoping is deliberately left to callers, which compare
// [Claims.Purpose] against the purpose they expect. This keeps the four
// purpose-token flows on a single mechanism distinguished by a tag instead of
// four near-duplicate codecs.
package token
