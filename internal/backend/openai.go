// ABOUTME: OpenAI-compatible HTTP invoker for chaz backends
// ABOUTME: Maps prompts onto chat completion messages via the openai-go SDK

package backend

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/2389/chaz/internal/prompt"
)

// OpenAI invokes completions against an OpenAI-compatible endpoint.
type OpenAI struct {
	api openai.Client
}

// NewOpenAI creates an invoker for the given API base URL and key.
func NewOpenAI(apiBase, apiKey string) *OpenAI {
	return &OpenAI{
		api: openai.NewClient(
			option.WithBaseURL(apiBase),
			option.WithAPIKey(apiKey),
		),
	}
}

// Invoke sends the prompt as a chat completion request and returns the
// completion text. Any transport or API failure, including timeouts,
// surfaces as a single error.
func (o *OpenAI) Invoke(ctx context.Context, model string, p *prompt.Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.Turns)+1)
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	for _, turn := range p.Turns {
		switch turn.Role {
		case prompt.TurnAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content()))
		default:
			messages = append(messages, openai.UserMessage(turn.Content()))
		}
	}

	resp, err := o.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
