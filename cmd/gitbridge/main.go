// gitbridge — a conversational assistant for GitLab.
//
// It brokers the GitLab OAuth flow, keeps access tokens sealed in a
// credential vault, and exposes GitLab operations (profile, projects,
// clone) as tools to a conversational model. The terminal session is
// the UI: the model decides which tool to call, gitbridge executes it.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rapidops/gitbridge/internal/agent"
	"github.com/rapidops/gitbridge/internal/chat"
	"github.com/rapidops/gitbridge/internal/config"
	"github.com/rapidops/gitbridge/internal/gitlab"
	"github.com/rapidops/gitbridge/internal/oauth"
	"github.com/rapidops/gitbridge/internal/store"
	"github.com/rapidops/gitbridge/internal/telemetry"
	"github.com/rapidops/gitbridge/internal/tools"
	"github.com/rapidops/gitbridge/internal/vault"
)

func main() {
	// Setup structured logging. The conversation owns stdout, so logs go
	// to stderr.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownTracing(shutdownCtx)
	}()

	key, err := cfg.Vault.Key()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid master key")
	}

	creds, err := store.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.Table)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to credential store")
	}
	defer creds.Close()

	tokens, err := vault.New(key, creds)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open token vault")
	}

	gl := gitlab.NewClient(tokens, cfg.GitLab.APIBaseURL, &gitlab.GitCloneRunner{})
	exchanger := oauth.NewExchanger(cfg.GitLab, tokens, gl)

	registry := tools.NewRegistry()
	tools.RegisterGitLabTools(registry, exchanger, gl)

	// Optional loopback listener for the OAuth redirect. The code still
	// goes through the exchange tool: the listener just surfaces it so the
	// user does not have to fish it out of the browser address bar.
	if cfg.Callback.Addr != "" {
		cb := oauth.NewCallbackServer(cfg.Callback.Addr, func(code string) {
			fmt.Printf("\nReceived authorization code: %s\n", code)
			fmt.Println("Paste it into the conversation to finish authorization.")
		})
		if err := cb.Start(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Callback.Addr).Msg("Failed to start callback listener")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     os.TempDir() + "/.gitbridge_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize terminal input")
	}
	defer rl.Close()

	assistant := agent.NewAnthropicAgent(cfg.Agent)
	loop := chat.NewLoop(assistant, registry, rl, os.Stdout)

	log.Info().Str("model", cfg.Agent.Model).Msg("gitbridge ready")

	if err := loop.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Conversation ended with error")
	}
}
