// Package summary is the optional LLM layer on top of fetched
// articles. When unconfigured the bot holds a nil Summarizer and the
// feature simply disappears from the UI.
package summary

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLength int) (string, error)
}

type openAISummarizer struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a Summarizer against OpenAI or any compatible
// endpoint (baseURL empty = api.openai.com).
func NewOpenAI(apiKey, model, baseURL string) Summarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAISummarizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *openAISummarizer) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following article. You must respect the same language as the original text.\n"+
			"Please keep the summary under %d characters.\n\nARTICLE:\n%s", maxLength, text)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarize: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
