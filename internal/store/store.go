// Package store provides durable keyed storage for encrypted credentials.
// The vault depends on this interface only, making it easy to swap between
// in-memory (tests, local dev) and PostgreSQL (production) implementations.
package store

import "context"

// Credential is one stored record: an encrypted token keyed by username.
// The ciphertext is opaque to the store; sealing and opening happen in the
// vault layer.
type Credential struct {
	Username   string
	Ciphertext string
}

// CredentialStore is the storage contract for encrypted access tokens.
// At most one record exists per username; Upsert is an atomic
// create-or-replace by key, never a read-modify-write.
type CredentialStore interface {
	// Upsert inserts or atomically replaces the record for cred.Username.
	Upsert(ctx context.Context, cred Credential) error

	// Get returns the record for username. found is false when no record
	// exists; that is not an error.
	Get(ctx context.Context, username string) (cred Credential, found bool, err error)

	// Delete removes the record for username. Deleting a missing record
	// is a no-op.
	Delete(ctx context.Context, username string) error

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}
