// Package authcore is an embeddable credential and session lifecycle
// engine: password login with Argon2id hashing, short-lived signed access
// tokens, long-lived hashed refresh sessions in Redis, optional TOTP
// step-up two-factor authentication, and single-use purpose tokens for
// email verification, password reset, email change, and 2FA reset.
//
// Construct an engine through the builder:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(client).
//		WithUserStore(store).
//		WithNotifier(mailer).
//		Build()
//
// The engine owns no HTTP surface beyond the refresh cookie helpers; see
// examples/http-minimal for a complete stdlib wiring. User persistence is
// the caller's: implement [UserStore], or use the pgx-backed adapter in
// store/postgres.
package authcore
