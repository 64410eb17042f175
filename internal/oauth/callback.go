package oauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const callbackSuccessHTML = `<!DOCTYPE html>
<html><body>
<h2>Authorization received</h2>
<p>You can return to the gitbridge terminal and hand the code to the assistant.</p>
</body></html>`

const callbackErrorHTML = `<!DOCTYPE html>
<html><body>
<h2>Authorization failed</h2>
<p>%s</p>
</body></html>`

// CallbackServer is an optional loopback HTTP listener for the OAuth redirect
// URI. When GitLab redirects the browser to /callback?code=..., the code is
// surfaced to the terminal so the user does not have to copy it out of the
// address bar. The code itself is still exchanged through the normal tool.
type CallbackServer struct {
	addr     string
	onCode   func(code string)
	server   *http.Server
	listener net.Listener
}

// NewCallbackServer creates a listener on addr. onCode is called for every
// authorization code received.
func NewCallbackServer(addr string, onCode func(code string)) *CallbackServer {
	return &CallbackServer{addr: addr, onCode: onCode}
}

// Start begins serving. It returns once the listener is bound; serving stops
// when ctx is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("callback listener on %s: %w", s.addr, err)
	}
	s.listener = listener

	r := chi.NewRouter()
	r.Get("/callback", s.handleCallback)

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("callback server stopped unexpectedly")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", listener.Addr().String()).Msg("OAuth callback listener started")
	return nil
}

// Addr returns the bound listen address.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		desc := q.Get("error_description")
		log.Warn().Str("error", errCode).Str("description", desc).Msg("authorization denied by provider")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, callbackErrorHTML, errCode)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing code parameter", http.StatusBadRequest)
		return
	}

	if s.onCode != nil {
		s.onCode(code)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, callbackSuccessHTML)
}
