// Package gitlab is the authenticated GitLab API client. Every user-scoped
// call fetches the token from the vault; a 401 from the provider revokes the
// stored token so the next attempt forces reauthorization instead of failing
// against a dead credential.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rapidops/gitbridge/internal/vault"
)

// DefaultHTTPTimeout bounds every outbound provider call.
const DefaultHTTPTimeout = 30 * time.Second

// Profile is the provider's view of the authenticated user.
type Profile struct {
	Username      string `json:"username"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	ProjectsLimit int    `json:"projects_limit"`
}

// Project is one repository owned by the user.
type Project struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Visibility    string `json:"visibility"`
	HTTPURLToRepo string `json:"http_url_to_repo"`
}

// Client calls the GitLab REST API with tokens retrieved from the vault.
type Client struct {
	vault  *vault.Vault
	base   string
	http   *http.Client
	cloner CloneRunner
}

// NewClient creates a GitLab API client. base is the API root, e.g.
// "https://gitlab.com/api/v4".
func NewClient(v *vault.Vault, base string, cloner CloneRunner) *Client {
	return &Client{
		vault:  v,
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: DefaultHTTPTimeout},
		cloner: cloner,
	}
}

// ProfileForToken resolves the profile owning a raw bearer token. Used during
// the OAuth exchange, before any username is known; it bypasses the vault and
// never revokes anything.
func (c *Client) ProfileForToken(ctx context.Context, token string) (*Profile, error) {
	var profile Profile
	status, body, err := c.getJSON(ctx, token, "/user", &profile)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Status: status, Body: body}
	}
	if profile.Username == "" {
		return nil, &UpstreamError{Status: status, Body: "profile response carried no username"}
	}
	return &profile, nil
}

// Profile fetches the stored-token user's profile.
func (c *Client) Profile(ctx context.Context, username string) (*Profile, error) {
	token, err := c.token(ctx, username)
	if err != nil {
		return nil, err
	}

	var profile Profile
	status, body, err := c.getJSON(ctx, token, "/user", &profile)
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(ctx, username, status, body); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Projects returns the names of the user's owned projects in the order the
// provider returned them. An empty list is a valid result.
func (c *Client) Projects(ctx context.Context, username string) ([]string, error) {
	projects, err := c.ownedProjects(ctx, username)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	return names, nil
}

// LocateAndClone finds the first owned project whose name matches projectName
// case-insensitively and clones it. Private repositories are cloned through a
// URL with the bearer token embedded as the oauth2 basic-auth user; that URL
// is handed to the clone runner only and never logged or returned.
func (c *Client) LocateAndClone(ctx context.Context, username, projectName string) (string, error) {
	token, err := c.token(ctx, username)
	if err != nil {
		return "", err
	}

	projects, err := c.ownedProjects(ctx, username)
	if err != nil {
		return "", err
	}

	var match *Project
	for i := range projects {
		if strings.EqualFold(projects[i].Name, projectName) {
			match = &projects[i]
			break
		}
	}
	if match == nil {
		return "", &NotFoundError{Project: projectName}
	}

	cloneURL := match.HTTPURLToRepo
	if match.Visibility == "private" {
		cloneURL, err = embedToken(cloneURL, token)
		if err != nil {
			return "", fmt.Errorf("build clone url for %q: %w", match.Name, err)
		}
	}

	log.Info().Str("project", match.Name).Str("visibility", match.Visibility).Msg("cloning repository")

	out, err := c.cloner.Clone(ctx, cloneURL)
	if err != nil {
		return "", &CloneError{Project: match.Name, Output: redact(out, token), Err: err}
	}
	return fmt.Sprintf("Repository %q cloned successfully.", match.Name), nil
}

// ownedProjects lists the user's owned projects with full metadata.
func (c *Client) ownedProjects(ctx context.Context, username string) ([]Project, error) {
	token, err := c.token(ctx, username)
	if err != nil {
		return nil, err
	}

	var projects []Project
	status, body, err := c.getJSON(ctx, token, "/projects?owned=true", &projects)
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(ctx, username, status, body); err != nil {
		return nil, err
	}
	return projects, nil
}

// token retrieves the stored token, reporting absence as Unauthenticated.
func (c *Client) token(ctx context.Context, username string) (string, error) {
	token, found, err := c.vault.Fetch(ctx, username)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &UnauthenticatedError{Username: username}
	}
	return token, nil
}

// checkStatus maps a provider response status to the error taxonomy. A 401
// revokes the stored token before failing.
func (c *Client) checkStatus(ctx context.Context, username string, status int, body string) error {
	switch {
	case status == http.StatusUnauthorized:
		if err := c.vault.Revoke(ctx, username); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("failed to revoke rejected token")
		}
		return &UnauthenticatedError{Username: username}
	case status != http.StatusOK:
		return &UpstreamError{Status: status, Body: body}
	}
	return nil
}

// getJSON issues an authenticated GET and decodes the body into out when the
// status is 200. It returns the status and raw body so callers can apply the
// error taxonomy; transport failures come back as UpstreamError directly.
func (c *Client) getJSON(ctx context.Context, token, path string, out interface{}) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", &UpstreamError{Body: redact(err.Error(), token)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", &UpstreamError{Body: redact(err.Error(), token)}
	}

	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, "", &UpstreamError{Status: resp.StatusCode, Body: "malformed response body"}
		}
	}
	return resp.StatusCode, string(body), nil
}

// embedToken rewrites repoURL to carry the token as the oauth2 basic-auth
// user, GitLab's convention for cloning private repositories over HTTPS.
func embedToken(repoURL, token string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", err
	}
	u.User = url.UserPassword("oauth2", token)
	return u.String(), nil
}

// redact strips the token from diagnostics before they reach logs or the
// conversation.
func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "[REDACTED]")
}
