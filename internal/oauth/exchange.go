// Package oauth runs the GitLab authorization-code exchange and binds the
// resulting token to the username the provider says owns it.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/rapidops/gitbridge/internal/config"
	"github.com/rapidops/gitbridge/internal/gitlab"
	"github.com/rapidops/gitbridge/internal/vault"
)

// exchangeTimeout bounds the token-endpoint POST and the profile lookup.
const exchangeTimeout = 30 * time.Second

// ProfileResolver resolves the profile owning a raw bearer token.
// Satisfied by *gitlab.Client.
type ProfileResolver interface {
	ProfileForToken(ctx context.Context, token string) (*gitlab.Profile, error)
}

// ExchangeError is a failed code-for-token exchange. Body carries the
// provider's error response so a reused or mistyped code is diagnosable.
// Recoverable by restarting the authorization flow.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("token exchange failed: %s", e.Body)
	}
	return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Body)
}

// Exchanger performs the authorization-code grant against GitLab.
type Exchanger struct {
	cfg      oauth2.Config
	vault    *vault.Vault
	profiles ProfileResolver
	http     *http.Client
}

// NewExchanger builds an exchanger from the OAuth application config.
func NewExchanger(gl config.GitLabConfig, v *vault.Vault, profiles ProfileResolver) *Exchanger {
	return &Exchanger{
		cfg: oauth2.Config{
			ClientID:     gl.ClientID,
			ClientSecret: gl.ClientSecret,
			RedirectURL:  gl.RedirectURI,
			Scopes:       []string{"read_user", "api"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   gl.AuthURL,
				TokenURL:  gl.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		vault:    v,
		profiles: profiles,
		http:     &http.Client{Timeout: exchangeTimeout},
	}
}

// AuthorizationURL formats the provider's authorization endpoint with the
// configured client id, redirect URI and scopes. Pure function of
// configuration, no side effects.
func (e *Exchanger) AuthorizationURL() string {
	return e.cfg.AuthCodeURL("")
}

// Exchange posts the authorization code to the token endpoint, resolves the
// token's owner via a fresh profile lookup, persists the token under that
// username, and returns a confirmation naming the user.
//
// The username is always derived from the token itself; accepting a
// caller-supplied username here would let one user bind a token to another
// user's identity. If any step fails nothing is persisted. Re-exchanging a
// code the provider has already invalidated fails the same way as a bad code.
func (e *Exchanger) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.http)

	tok, err := e.cfg.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", &ExchangeError{
				Status: retrieveErr.Response.StatusCode,
				Body:   string(retrieveErr.Body),
			}
		}
		return "", &ExchangeError{Body: err.Error()}
	}
	if tok.AccessToken == "" {
		return "", &ExchangeError{Body: "provider returned no access token"}
	}

	profile, err := e.profiles.ProfileForToken(ctx, tok.AccessToken)
	if err != nil {
		return "", fmt.Errorf("resolve token owner: %w", err)
	}

	if err := e.vault.Store(ctx, profile.Username, tok.AccessToken); err != nil {
		return "", err
	}

	log.Info().Str("username", profile.Username).Msg("authorization complete")
	return fmt.Sprintf("Authorization successful! Token saved for user %q.", profile.Username), nil
}
