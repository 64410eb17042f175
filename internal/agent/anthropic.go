package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rapidops/gitbridge/internal/config"
	"github.com/rapidops/gitbridge/internal/tools"
)

const anthropicVersion = "2023-06-01"

// AnthropicAgent calls the Anthropic Messages API.
type AnthropicAgent struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// NewAnthropicAgent creates an agent client from configuration.
func NewAnthropicAgent(cfg config.AgentConfig) *AnthropicAgent {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicAgent{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []Message          `json:"messages"`
	Tools     []tools.Descriptor `json:"tools,omitempty"`
}

type anthropicResponse struct {
	ID         string         `json:"id"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Complete sends the conversation and tool set to the Messages API and
// returns the model's reply.
func (a *AnthropicAgent) Complete(ctx context.Context, system string, history []Message, toolset []tools.Descriptor) (*Reply, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		System:    system,
		MaxTokens: a.maxTokens,
		Messages:  history,
		Tools:     toolset,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	url := a.endpoint + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("anthropic: status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var anthResp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&anthResp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	return &Reply{Content: anthResp.Content, StopReason: anthResp.StopReason}, nil
}
