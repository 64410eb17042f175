// Package chat drives the interactive session: user turns in, model turns
// out, with tool calls dispatched in between. One session, one loop, fully
// synchronous.
package chat

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rapidops/gitbridge/internal/agent"
	"github.com/rapidops/gitbridge/internal/tools"
)

// maxToolTurns bounds consecutive model/tool iterations within one user turn
// so a misbehaving model cannot spin the loop forever.
const maxToolTurns = 10

// LineReader yields one line of user input per call. *readline.Instance
// satisfies it.
type LineReader interface {
	Readline() (string, error)
}

// Loop is the conversation state machine. History is owned here, is
// append-only within the session, and is discarded when the session ends.
type Loop struct {
	agent    agent.ConversationalAgent
	registry *tools.Registry
	input    LineReader
	out      io.Writer
}

// NewLoop assembles a conversation loop.
func NewLoop(a agent.ConversationalAgent, registry *tools.Registry, input LineReader, out io.Writer) *Loop {
	return &Loop{agent: a, registry: registry, input: input, out: out}
}

// Run blocks on user input until the user exits or ctx is cancelled.
// Collaborator errors are converted into tool results or displayed messages;
// nothing that happens inside a turn terminates the session.
func (l *Loop) Run(ctx context.Context) error {
	sessionID := uuid.NewString()
	log.Info().Str("session", sessionID).Msg("chat session started")

	history := make([]agent.Message, 0, 16)
	descriptors := l.registry.Descriptors()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := l.input.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			fmt.Fprintln(l.out, "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isExitCommand(input) {
			fmt.Fprintln(l.out, "Goodbye!")
			return nil
		}

		history = append(history, agent.TextMessage(agent.RoleUser, input))
		history = l.runAgentTurns(ctx, history, descriptors)
	}
}

// runAgentTurns sends the history to the agent and services tool calls until
// the agent yields a plain-text reply, then returns the extended history.
func (l *Loop) runAgentTurns(ctx context.Context, history []agent.Message, descriptors []tools.Descriptor) []agent.Message {
	for turn := 0; turn < maxToolTurns; turn++ {
		reply, err := l.agent.Complete(ctx, systemPrompt, history, descriptors)
		if err != nil {
			log.Error().Err(err).Msg("agent call failed")
			fmt.Fprintf(l.out, "Sorry, I could not reach the assistant: %v\n", err)
			return history
		}

		history = append(history, agent.Message{Role: agent.RoleAssistant, Content: reply.Content})

		if reply.StopReason != agent.StopReasonToolUse {
			fmt.Fprintf(l.out, "\nAssistant: %s\n", reply.Text())
			return history
		}

		toolUse := reply.LastToolUse()
		if toolUse == nil {
			// Model claimed tool use but sent no tool_use block; treat as text.
			fmt.Fprintf(l.out, "\nAssistant: %s\n", reply.Text())
			return history
		}
		if toolUse.ID == "" {
			toolUse.ID = "call_" + uuid.NewString()
		}

		log.Info().Str("tool", toolUse.Name).Msg("dispatching tool call")
		fmt.Fprintf(l.out, "[using %s]\n", toolUse.Name)

		result, err := l.registry.Dispatch(ctx, toolUse.Name, toolUse.Input)
		isError := false
		if err != nil {
			// The error text becomes the tool result so the agent can
			// explain it to the user; the session keeps running.
			result = err.Error()
			isError = true
			log.Warn().Err(err).Str("tool", toolUse.Name).Msg("tool call failed")
		}

		history = append(history, agent.ToolResultMessage(toolUse.ID, result, isError))
	}

	log.Warn().Int("max_turns", maxToolTurns).Msg("tool loop hit turn limit")
	fmt.Fprintln(l.out, "Stopping here: too many consecutive tool calls in one turn.")
	return history
}

func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "exit", "quit", "bye":
		return true
	}
	return false
}
