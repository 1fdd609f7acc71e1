// Package internal holds helpers shared by the root package and its stores:
// random refresh-secret generation and the id-prefixed opaque refresh value
// encoding. Nothing here is part of the public API.
package internal
