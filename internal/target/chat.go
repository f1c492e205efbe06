package target

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gauntlet-eval/gauntlet/internal/models"
	"github.com/gauntlet-eval/gauntlet/internal/suite"
)

// defaultAPIKeyEnv is consulted when the suite doesn't name a key variable.
const defaultAPIKeyEnv = "OPENAI_API_KEY"

// ChatTarget drives an OpenAI-compatible chat-completions endpoint, one
// request per conversation turn. Tool calls returned by the model are
// recorded in the trajectory but not executed; tool execution belongs to
// agent runtimes, not this adapter.
type ChatTarget struct {
	client       *openai.Client
	systemPrompt string
}

// NewChatTarget builds the adapter from the suite target spec.
func NewChatTarget(spec suite.TargetSpec) (*ChatTarget, error) {
	keyEnv := spec.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("target: environment variable %s is not set", keyEnv)
	}

	cfg := openai.DefaultConfig(apiKey)
	if spec.BaseURL != "" {
		cfg.BaseURL = spec.BaseURL
	}

	return &ChatTarget{
		client:       openai.NewClientWithConfig(cfg),
		systemPrompt: spec.SystemPrompt,
	}, nil
}

// Run implements [Target].
func (t *ChatTarget) Run(ctx context.Context, handle suite.ModelHandle, sample models.Sample) (*Response, error) {
	var messages []openai.ChatCompletionMessage
	if t.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: t.systemPrompt,
		})
	}

	trajectory := make(models.Trajectory, 0, len(sample.Input))

	for _, userInput := range sample.Input {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: userInput,
		})

		req := openai.ChatCompletionRequest{
			Model:    handle.Model,
			Messages: messages,
		}
		if handle.Temperature != nil {
			req.Temperature = *handle.Temperature
		}

		resp, err := t.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, classify(err)
		}
		if len(resp.Choices) == 0 {
			return nil, Transient(fmt.Errorf("model %s returned no choices", handle.Model))
		}

		choice := resp.Choices[0].Message
		turn := []models.Message{{Role: models.RoleUser, Content: userInput}}

		for _, tc := range choice.ToolCalls {
			turn = append(turn, models.Message{
				Role: models.RoleAssistant,
				ToolCall: &models.ToolCall{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		turn = append(turn, models.Message{Role: models.RoleAssistant, Content: choice.Content})
		trajectory = append(trajectory, turn)

		messages = append(messages, choice)
	}

	return &Response{Trajectory: trajectory}, nil
}

// classify maps provider errors onto the transient/terminal taxonomy.
// Rate limits, timeouts, and server-side failures are worth retrying;
// anything else (bad model name, malformed request) will fail the same way
// every time.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return Transient(err)
		}
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 408 || reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return Transient(err)
		}
		return err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	// Connection-level failures have no status code; assume the network
	// hiccup clears.
	return Transient(err)
}
