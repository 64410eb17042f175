// Package agent defines the conversational-agent capability and its Anthropic
// implementation. The chat loop depends on the ConversationalAgent interface
// only, so the model backend can be swapped or mocked in tests.
package agent

import (
	"context"

	"github.com/rapidops/gitbridge/internal/tools"
)

// Stop reasons reported by the model.
const (
	StopReasonEndTurn = "end_turn"
	StopReasonToolUse = "tool_use"
)

// Roles in the conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock is one block of a message: plain text, a tool-use request from
// the model, or a tool result fed back by the host.
type ContentBlock struct {
	Type string `json:"type"`

	// Text content ("text" blocks).
	Text string `json:"text,omitempty"`

	// Tool-use request ("tool_use" blocks).
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// Tool result ("tool_result" blocks).
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message is one turn of conversation history.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage builds a single-text-block message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ToolResultMessage builds the user-role turn that carries a tool result back
// to the model, correlated by the tool call's identifier.
func ToolResultMessage(toolUseID, content string, isError bool) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{{
		Type:      "tool_result",
		ToolUseID: toolUseID,
		Content:   content,
		IsError:   isError,
	}}}
}

// Reply is one model response.
type Reply struct {
	Content    []ContentBlock
	StopReason string
}

// Text concatenates the reply's text blocks.
func (r *Reply) Text() string {
	out := ""
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// LastToolUse returns the reply's most recent tool_use block, or nil.
// Multiple tool calls in one reply are not supported; only the last one is
// acted on.
func (r *Reply) LastToolUse() *ContentBlock {
	for i := len(r.Content) - 1; i >= 0; i-- {
		if r.Content[i].Type == "tool_use" {
			return &r.Content[i]
		}
	}
	return nil
}

// ConversationalAgent produces the next model reply for a conversation,
// given the static tool descriptor set.
type ConversationalAgent interface {
	Complete(ctx context.Context, system string, history []Message, toolset []tools.Descriptor) (*Reply, error)
}
