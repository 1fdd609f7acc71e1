// Package postgres is a pgx-backed [authcore.UserStore] implementation.
// It owns no schema migration; it expects a `users` table with the columns
// it selects. Missing rows map to [authcore.ErrUserNotFound] and unique
// violations on insert to [authcore.ErrDuplicateUser].
package postgres
