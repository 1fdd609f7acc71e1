// Package password implements argon2id hashing for account passwords and raw
// refresh-token values.
//
// Digests are stored in PHC string format so cost parameters travel with the
// digest and can be upgraded over time. Verification is constant-time; a
// digest that cannot be parsed is reported as [ErrMalformedDigest] and is
// treated by every caller as a plain mismatch.
//
// # What this package must NOT do
//
//   - Persist anything or perform I/O beyond reading crypto/rand.
//   - Import any other authcore package.
package password
