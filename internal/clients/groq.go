package clients

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var ErrLLMDisabled = errors.New("llm api key is not configured")

// Groq is an OpenAI-compatible chat completion client.
type Groq struct {
	client *openai.Client
	model  string
}

func NewGroq(apiKey, baseURL, model string, timeout time.Duration) *Groq {
	if apiKey == "" {
		return &Groq{model: model}
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Groq{client: openai.NewClientWithConfig(cfg), model: model}
}

type Message struct {
	Role    string // system, user, assistant
	Content string
}

type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
	JSON        bool // ask for a JSON object response
}

func (g *Groq) Complete(ctx context.Context, msgs []Message, opts CompletionOptions) (string, error) {
	if g.client == nil {
		return "", ErrLLMDisabled
	}
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
