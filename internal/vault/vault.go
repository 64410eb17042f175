package vault

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rapidops/gitbridge/internal/store"
)

// Vault stores one encrypted access token per username.
// Plaintext tokens exist in memory only on the way into Store and on the way
// out of Fetch; the backing store and the logs only ever see ciphertext.
type Vault struct {
	sealer *Sealer
	creds  store.CredentialStore
}

// New creates a vault over the given store, sealing with key.
func New(key []byte, creds store.CredentialStore) (*Vault, error) {
	sealer, err := NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}
	return &Vault{sealer: sealer, creds: creds}, nil
}

// Store encrypts token and upserts it under username. A second Store for the
// same username replaces the prior record.
func (v *Vault) Store(ctx context.Context, username, token string) error {
	sealed, err := v.sealer.Seal(token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	if err := v.creds.Upsert(ctx, store.Credential{Username: username, Ciphertext: sealed}); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	log.Debug().Str("username", username).Msg("access token stored")
	return nil
}

// Fetch decrypts and returns the token for username. found is false when no
// token is stored; callers must treat that as "needs reauthorization", not as
// a failure.
func (v *Vault) Fetch(ctx context.Context, username string) (token string, found bool, err error) {
	cred, found, err := v.creds.Get(ctx, username)
	if err != nil {
		return "", false, fmt.Errorf("fetch token: %w", err)
	}
	if !found {
		return "", false, nil
	}
	token, err = v.sealer.Open(cred.Ciphertext)
	if err != nil {
		return "", false, fmt.Errorf("unseal token for %s: %w", username, err)
	}
	return token, true, nil
}

// Revoke removes the stored token for username. Used for explicit deletion
// and for automatic invalidation after the provider rejects the token.
func (v *Vault) Revoke(ctx context.Context, username string) error {
	if err := v.creds.Delete(ctx, username); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	log.Debug().Str("username", username).Msg("access token revoked")
	return nil
}
