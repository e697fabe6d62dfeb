package llm

import (
	"context"
	"errors"

	"github.com/findius/findius/pkg/anthropic"
	"github.com/findius/findius/pkg/gemini"
	"github.com/findius/findius/pkg/openai"
)

// jsonInstruction is appended to the system prompt for providers without a
// native JSON response mode.
const jsonInstruction = "\n\nAntworte ausschließlich mit einem einzigen gültigen JSON-Objekt ohne Markdown."

// models maps a Tier to a provider model ID.
type models struct {
	fast    string
	quality string
}

func (m models) pick(t Tier) string {
	if t == Quality {
		return m.quality
	}
	return m.fast
}

type openAIProvider struct {
	client openai.Client
	models models
}

// NewOpenAI adapts an OpenAI client to Client.
func NewOpenAI(c openai.Client, fast, quality string) Client {
	return &openAIProvider{client: c, models: models{fast, quality}}
}

func (p *openAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]openai.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	temp := req.Temperature
	model := p.models.pick(req.Tier)
	resp, err := p.client.Complete(ctx, openai.ChatRequest{
		Model:       model,
		System:      req.System,
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   int64(req.MaxTokens),
		JSON:        req.JSON,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}
	return &Response{
		Text:         resp.Content,
		Model:        model,
		InputTokens:  int(resp.InputTokens),
		OutputTokens: int(resp.OutputTokens),
	}, nil
}

type anthropicProvider struct {
	client anthropic.Client
	models models
}

// NewAnthropic adapts an Anthropic client to Client.
func NewAnthropic(c anthropic.Client, fast, quality string) Client {
	return &anthropicProvider{client: c, models: models{fast, quality}}
}

func (p *anthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	system := req.System
	if req.JSON {
		system += jsonInstruction
	}
	msgs := make([]anthropic.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = anthropic.Message{Role: m.Role, Content: m.Content}
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temp := req.Temperature
	model := p.models.pick(req.Tier)

	areq := anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Messages:    msgs,
		Temperature: &temp,
	}
	if system != "" {
		areq.System = []anthropic.SystemBlock{{Text: system, Cached: len(system) > 2000}}
	}

	resp, err := p.client.CreateMessage(ctx, areq)
	if err != nil {
		return nil, &ProviderError{Provider: "anthropic", Err: err}
	}
	return &Response{
		Text:         resp.Text(),
		Model:        model,
		InputTokens:  int(resp.Usage.InputTokens + resp.Usage.CacheReadInputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

type geminiProvider struct {
	client gemini.Client
	models models
}

// NewGemini adapts a Gemini client to Client.
func NewGemini(c gemini.Client, fast, quality string) Client {
	return &geminiProvider{client: c, models: models{fast, quality}}
}

func (p *geminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]gemini.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = gemini.Message{Role: m.Role, Content: m.Content}
	}
	temp := req.Temperature
	model := p.models.pick(req.Tier)
	resp, err := p.client.Generate(ctx, gemini.GenerateRequest{
		Model:       model,
		System:      req.System,
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   int32(req.MaxTokens),
		JSON:        req.JSON,
	})
	if err != nil {
		if errors.Is(err, gemini.ErrEmpty) {
			return &Response{Model: model}, nil
		}
		return nil, &ProviderError{Provider: "gemini", Err: err}
	}
	return &Response{
		Text:         resp.Text,
		Model:        model,
		InputTokens:  int(resp.InputTokens),
		OutputTokens: int(resp.OutputTokens),
	}, nil
}
