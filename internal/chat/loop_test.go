package chat_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rapidops/gitbridge/internal/agent"
	"github.com/rapidops/gitbridge/internal/chat"
	"github.com/rapidops/gitbridge/internal/tools"
)

// scriptedInput feeds predefined lines, then EOF.
type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

// scriptedAgent returns predefined replies in order and records the history
// it was given on each call.
type scriptedAgent struct {
	replies   []*agent.Reply
	err       error
	histories [][]agent.Message
}

func (s *scriptedAgent) Complete(_ context.Context, system string, history []agent.Message, _ []tools.Descriptor) (*agent.Reply, error) {
	if system == "" {
		return nil, errors.New("system prompt missing")
	}
	snapshot := make([]agent.Message, len(history))
	copy(snapshot, history)
	s.histories = append(s.histories, snapshot)

	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return &agent.Reply{StopReason: agent.StopReasonEndTurn, Content: []agent.ContentBlock{{Type: "text", Text: "done"}}}, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func textReply(text string) *agent.Reply {
	return &agent.Reply{
		StopReason: agent.StopReasonEndTurn,
		Content:    []agent.ContentBlock{{Type: "text", Text: text}},
	}
}

func toolReply(id, name string, input map[string]interface{}) *agent.Reply {
	return &agent.Reply{
		StopReason: agent.StopReasonToolUse,
		Content: []agent.ContentBlock{
			{Type: "text", Text: "Working on it."},
			{Type: "tool_use", ID: id, Name: name, Input: input},
		},
	}
}

func newRegistry(t *testing.T, handler tools.Handler) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	r.Register(tools.Descriptor{
		Name: "get_user_projects",
		InputSchema: tools.Schema{
			Type:       "object",
			Properties: map[string]tools.Property{"username": {Type: "string"}},
			Required:   []string{"username"},
		},
	}, handler)
	return r
}

func TestRun_FinalAnswerDisplayed(t *testing.T) {
	a := &scriptedAgent{replies: []*agent.Reply{textReply("Hello there!")}}
	r := newRegistry(t, nil)
	var out bytes.Buffer

	loop := chat.NewLoop(a, r, &scriptedInput{lines: []string{"hi", "exit"}}, &out)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !strings.Contains(out.String(), "Hello there!") {
		t.Errorf("output %q missing the assistant reply", out.String())
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("output %q missing the exit message", out.String())
	}
}

func TestRun_ToolCallThenFinalAnswer(t *testing.T) {
	var gotInput map[string]interface{}
	handler := func(_ context.Context, input map[string]interface{}) (string, error) {
		gotInput = input
		return "proj-a\nproj-b", nil
	}
	a := &scriptedAgent{replies: []*agent.Reply{
		toolReply("call_1", "get_user_projects", map[string]interface{}{"username": "alice"}),
		textReply("You have proj-a and proj-b."),
	}}
	var out bytes.Buffer

	loop := chat.NewLoop(a, newRegistry(t, handler), &scriptedInput{lines: []string{"list my projects"}}, &out)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if gotInput["username"] != "alice" {
		t.Errorf("handler input = %v, want username alice", gotInput)
	}

	// Second agent call must see: user turn, assistant tool-use turn, tool result.
	if len(a.histories) != 2 {
		t.Fatalf("agent called %d times, want 2", len(a.histories))
	}
	second := a.histories[1]
	if len(second) != 3 {
		t.Fatalf("second call history has %d turns, want 3", len(second))
	}
	last := second[2]
	if last.Role != agent.RoleUser || last.Content[0].Type != "tool_result" {
		t.Errorf("last turn = %+v, want a tool_result turn", last)
	}
	if last.Content[0].ToolUseID != "call_1" {
		t.Errorf("tool_result correlated to %q, want call_1", last.Content[0].ToolUseID)
	}
	if last.Content[0].Content != "proj-a\nproj-b" {
		t.Errorf("tool_result content = %q", last.Content[0].Content)
	}

	if !strings.Contains(out.String(), "You have proj-a and proj-b.") {
		t.Errorf("output %q missing the final answer", out.String())
	}
}

func TestRun_ToolErrorBecomesToolResult(t *testing.T) {
	handler := func(_ context.Context, _ map[string]interface{}) (string, error) {
		return "", errors.New("no valid access token for user \"alice\": please reauthorize")
	}
	a := &scriptedAgent{replies: []*agent.Reply{
		toolReply("call_1", "get_user_projects", map[string]interface{}{"username": "alice"}),
		textReply("You need to authorize first."),
	}}
	var out bytes.Buffer

	loop := chat.NewLoop(a, newRegistry(t, handler), &scriptedInput{lines: []string{"list my projects"}}, &out)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, session must survive tool failures", err)
	}

	second := a.histories[1]
	last := second[len(second)-1].Content[0]
	if !last.IsError {
		t.Error("tool_result should be flagged as an error")
	}
	if !strings.Contains(last.Content, "reauthorize") {
		t.Errorf("tool_result content = %q, want the failure message", last.Content)
	}
	if !strings.Contains(out.String(), "You need to authorize first.") {
		t.Error("agent did not get to explain the failure")
	}
}

func TestRun_OnlyLastToolUseIsActed(t *testing.T) {
	var calls []string
	handler := func(_ context.Context, input map[string]interface{}) (string, error) {
		calls = append(calls, input["username"].(string))
		return "ok", nil
	}
	a := &scriptedAgent{replies: []*agent.Reply{
		{
			StopReason: agent.StopReasonToolUse,
			Content: []agent.ContentBlock{
				{Type: "tool_use", ID: "call_1", Name: "get_user_projects", Input: map[string]interface{}{"username": "first"}},
				{Type: "tool_use", ID: "call_2", Name: "get_user_projects", Input: map[string]interface{}{"username": "second"}},
			},
		},
		textReply("done"),
	}}

	loop := chat.NewLoop(a, newRegistry(t, handler), &scriptedInput{lines: []string{"go"}}, io.Discard)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(calls) != 1 || calls[0] != "second" {
		t.Errorf("dispatched calls = %v, want only the last tool_use", calls)
	}
}

func TestRun_AgentFailureKeepsSessionAlive(t *testing.T) {
	a := &scriptedAgent{err: errors.New("rate limited")}
	var out bytes.Buffer

	loop := chat.NewLoop(a, newRegistry(t, nil), &scriptedInput{lines: []string{"hi", "quit"}}, &out)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, agent failure must not end the session", err)
	}
	if !strings.Contains(out.String(), "could not reach the assistant") {
		t.Errorf("output %q missing the displayed agent error", out.String())
	}
}

func TestRun_ExitKeywordsAndBlankLines(t *testing.T) {
	a := &scriptedAgent{}
	loop := chat.NewLoop(a, newRegistry(t, nil), &scriptedInput{lines: []string{"", "   ", "QUIT"}}, io.Discard)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(a.histories) != 0 {
		t.Errorf("agent called %d times on blank/exit input, want 0", len(a.histories))
	}
}
