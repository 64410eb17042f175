package oauth_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rapidops/gitbridge/internal/config"
	"github.com/rapidops/gitbridge/internal/gitlab"
	"github.com/rapidops/gitbridge/internal/oauth"
	"github.com/rapidops/gitbridge/internal/store"
	"github.com/rapidops/gitbridge/internal/vault"
)

// fakeResolver stands in for the GitLab client during exchange tests.
type fakeResolver struct {
	username  string
	err       error
	gotToken  string
}

func (f *fakeResolver) ProfileForToken(_ context.Context, token string) (*gitlab.Profile, error) {
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return &gitlab.Profile{Username: f.username}, nil
}

func newVault(t *testing.T) (*vault.Vault, *store.MemoryStore) {
	t.Helper()
	creds := store.NewMemoryStore()
	v, err := vault.New(bytes.Repeat([]byte{0x07}, 32), creds)
	if err != nil {
		t.Fatalf("vault.New() error = %v", err)
	}
	return v, creds
}

func glConfig(tokenURL string) config.GitLabConfig {
	return config.GitLabConfig{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURI:  "http://localhost:8484/callback",
		AuthURL:      "https://gitlab.example.com/oauth/authorize",
		TokenURL:     tokenURL,
	}
}

func TestAuthorizationURL(t *testing.T) {
	v, _ := newVault(t)
	ex := oauth.NewExchanger(glConfig("https://gitlab.example.com/oauth/token"), v, &fakeResolver{})

	raw := ex.AuthorizationURL()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthorizationURL() is not a valid URL: %v", err)
	}

	q := u.Query()
	if got := q.Get("client_id"); got != "app-id" {
		t.Errorf("client_id = %q, want app-id", got)
	}
	if got := q.Get("redirect_uri"); got != "http://localhost:8484/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
	if got := q.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q, want code", got)
	}
	if got := q.Get("scope"); got != "read_user api" {
		t.Errorf("scope = %q, want read_user api", got)
	}
	if !strings.HasPrefix(raw, "https://gitlab.example.com/oauth/authorize?") {
		t.Errorf("AuthorizationURL() = %q, want provider authorize endpoint", raw)
	}

	// Pure function of configuration: two calls agree.
	if again := ex.AuthorizationURL(); again != raw {
		t.Errorf("AuthorizationURL() is not deterministic: %q vs %q", raw, again)
	}
}

func TestExchange_StoresUnderResolvedUsername(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("code"); got != "good-code" {
			t.Errorf("code = %q", got)
		}
		if got := r.PostForm.Get("client_secret"); got != "app-secret" {
			t.Errorf("client_secret = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","token_type":"bearer"}`)
	}))
	defer srv.Close()

	v, _ := newVault(t)
	resolver := &fakeResolver{username: "alice"}
	ex := oauth.NewExchanger(glConfig(srv.URL), v, resolver)

	msg, err := ex.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if !strings.Contains(msg, "alice") {
		t.Errorf("confirmation %q should name the resolved user", msg)
	}
	if resolver.gotToken != "fresh-token" {
		t.Errorf("profile lookup used token %q, want fresh-token", resolver.gotToken)
	}

	token, found, err := v.Fetch(context.Background(), "alice")
	if err != nil || !found {
		t.Fatalf("Fetch(alice) = (found=%v, err=%v), want stored token", found, err)
	}
	if token != "fresh-token" {
		t.Errorf("stored token = %q, want fresh-token", token)
	}
}

func TestExchange_ProviderRejectsCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"code already used"}`)
	}))
	defer srv.Close()

	v, creds := newVault(t)
	ex := oauth.NewExchanger(glConfig(srv.URL), v, &fakeResolver{username: "alice"})

	_, err := ex.Exchange(context.Background(), "reused-code")
	var exchangeErr *oauth.ExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("Exchange() error = %v, want ExchangeError", err)
	}
	if exchangeErr.Status != http.StatusBadRequest {
		t.Errorf("ExchangeError.Status = %d, want 400", exchangeErr.Status)
	}
	if !strings.Contains(exchangeErr.Body, "invalid_grant") {
		t.Errorf("ExchangeError.Body = %q, want provider error body preserved", exchangeErr.Body)
	}

	if _, found, _ := creds.Get(context.Background(), "alice"); found {
		t.Error("a failed exchange must not persist any credential")
	}
}

func TestExchange_ProfileLookupFailureStoresNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh-token","token_type":"bearer"}`)
	}))
	defer srv.Close()

	v, creds := newVault(t)
	resolver := &fakeResolver{err: &gitlab.UpstreamError{Status: 500, Body: "boom"}}
	ex := oauth.NewExchanger(glConfig(srv.URL), v, resolver)

	_, err := ex.Exchange(context.Background(), "good-code")
	if err == nil {
		t.Fatal("Exchange() error = nil, want failure when the owner cannot be resolved")
	}

	if _, found, _ := creds.Get(context.Background(), "alice"); found {
		t.Error("no credential may be persisted when the profile lookup fails")
	}
}

func TestCallbackServer_DeliversCode(t *testing.T) {
	var got string
	cb := oauth.NewCallbackServer("127.0.0.1:0", func(code string) { got = code })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cb.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + cb.Addr() + "/callback?code=abc123")
	if err != nil {
		t.Fatalf("GET /callback error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("callback status = %d, want 200", resp.StatusCode)
	}
	if got != "abc123" {
		t.Errorf("delivered code = %q, want abc123", got)
	}
}

func TestCallbackServer_ProviderError(t *testing.T) {
	called := false
	cb := oauth.NewCallbackServer("127.0.0.1:0", func(string) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cb.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + cb.Addr() + "/callback?error=access_denied")
	if err != nil {
		t.Fatalf("GET /callback error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("callback status = %d, want 400", resp.StatusCode)
	}
	if called {
		t.Error("onCode must not fire for a denied authorization")
	}
}
