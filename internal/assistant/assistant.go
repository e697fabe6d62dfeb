// Package assistant is the conversational product search: it classifies a
// chat message, searches the catalog and writes per-product evaluations.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/cache"
	"github.com/findius/findius/internal/llm"
	"github.com/findius/findius/internal/model"
)

// DefaultTTL is how long chat and evaluation results are cached.
const DefaultTTL = 5 * time.Minute

// NoEvaluation stands in for products the model skipped.
const NoEvaluation = "Keine Bewertung verfügbar."

// Searcher finds catalog products for a keyword.
type Searcher interface {
	SearchProducts(ctx context.Context, keywords string) ([]model.Product, error)
}

// Service answers chat messages and evaluates products.
type Service struct {
	llm    llm.Client
	search Searcher
	cache  cache.Cache
	ttl    time.Duration
}

// New creates a Service. A ttl <= 0 uses DefaultTTL.
func New(client llm.Client, search Searcher, c cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{llm: client, search: search, cache: c, ttl: ttl}
}

// ChatRequest is one user message with the conversation so far.
type ChatRequest struct {
	Message     string              `json:"message"`
	History     []model.ChatMessage `json:"history"`
	Marketplace *model.Marketplace  `json:"marketplace"`
}

// ChatResponse is the assistant's answer.
type ChatResponse struct {
	Message  string              `json:"message"`
	Analysis model.Analysis      `json:"analysis"`
	Products []model.Product     `json:"products,omitempty"`
	History  []model.ChatMessage `json:"history"`
}

type analysisResult struct {
	model.Analysis
	Introduction string `json:"introduction"`
}

// Chat classifies the message and, for product searches, returns matching
// products without evaluations. Search failures only drop the products.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apierr.Validation("Message is required")
	}
	market := model.DefaultMarketplace
	if req.Marketplace != nil && req.Marketplace.Domain != "" {
		market = *req.Marketplace
	}

	key := cache.Key(req.Message, market.Domain)
	var cached ChatResponse
	if s.lookup(ctx, key, &cached) {
		zap.L().Debug("assistant: cache hit", zap.String("message", req.Message))
		return &cached, nil
	}

	result, err := s.analyze(ctx, req.Message, req.History)
	if err != nil {
		return nil, apierr.AIService(apierr.CodeAnalysis, err)
	}

	resp := &ChatResponse{
		Message:  result.Introduction,
		Analysis: result.Analysis,
	}
	if s.search != nil && result.Intention != model.IntentionConversation && result.Keyword != "" {
		products, err := s.search.SearchProducts(ctx, result.Keyword)
		if err != nil {
			zap.L().Error("assistant: product search failed", zap.String("keyword", result.Keyword), zap.Error(err))
		} else {
			zap.L().Info("assistant: products found", zap.String("keyword", result.Keyword), zap.Int("count", len(products)))
			for i := range products {
				products[i].Evaluation = nil
			}
			resp.Products = products
		}
	}

	resp.History = make([]model.ChatMessage, 0, len(req.History)+2)
	resp.History = append(resp.History, req.History...)
	resp.History = append(resp.History,
		model.ChatMessage{Role: "user", Content: req.Message},
		model.ChatMessage{Role: "assistant", Content: result.Introduction},
	)

	s.remember(ctx, key, resp)
	return resp, nil
}

func (s *Service) analyze(ctx context.Context, message string, history []model.ChatMessage) (*analysisResult, error) {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role == "user" || (m.Role == "assistant" && !strings.Contains(m.Content, "evaluations")) {
			msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: message})

	resp, err := s.llm.Complete(ctx, llm.Request{
		Operation: "analyze",
		Tier:      llm.Fast,
		System:    analyzePrompt,
		Messages:  msgs,
		JSON:      true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "assistant: analyze")
	}

	var result analysisResult
	if err := llm.DecodeJSON(resp.Text, &result); err != nil {
		return nil, eris.Wrap(err, "assistant: decode analysis")
	}
	result.Keyword = strings.TrimSpace(result.Keyword)
	return &result, nil
}

// EvaluateRequest asks for evaluations of products found by Chat.
type EvaluateRequest struct {
	Message     string             `json:"message"`
	Products    []model.Product    `json:"products"`
	Marketplace *model.Marketplace `json:"marketplace"`
}

// EvaluateResponse carries the products with evaluations filled in.
type EvaluateResponse struct {
	Products []model.Product `json:"products"`
}

// EvaluateBatch writes one evaluation per product in a single model call.
func (s *Service) EvaluateBatch(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apierr.Validation("Message is required and must be a string")
	}
	if len(req.Products) == 0 {
		return nil, apierr.Validation("Products must be a non-empty array")
	}
	if req.Marketplace == nil || req.Marketplace.Language == "" {
		return nil, apierr.Validation("Marketplace configuration is required")
	}

	titles := make([]string, len(req.Products))
	for i, p := range req.Products {
		titles[i] = p.Title
	}
	key := cache.Key("eval_batch_"+req.Message+"_"+strings.Join(titles, "|"), req.Marketplace.Domain)

	var cached EvaluateResponse
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	evals, err := s.evaluate(ctx, req.Message, req.Products, req.Marketplace.Language)
	if err != nil {
		return nil, apierr.AIService(apierr.CodeEvaluation, err)
	}

	out := &EvaluateResponse{Products: make([]model.Product, len(req.Products))}
	for i, p := range req.Products {
		e := evals[i]
		p.Evaluation = &e
		out.Products[i] = p
	}

	s.remember(ctx, key, out)
	return out, nil
}

func (s *Service) evaluate(ctx context.Context, message string, products []model.Product, language string) ([]string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the user's request: \"%s\"\n\nHere are the products to evaluate:\n", message)
	for i, p := range products {
		fmt.Fprintf(&b, "\n%d. %s, Price: %s", i+1, p.Title, p.Price)
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Operation: "evaluate",
		Tier:      llm.Fast,
		System:    evaluatePrompt + "\n\nRespond in " + language + ".",
		Messages:  []llm.Message{{Role: "user", Content: b.String()}},
		JSON:      true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "assistant: evaluate")
	}

	var result struct {
		Evaluations json.RawMessage `json:"evaluations"`
	}
	if err := llm.DecodeJSON(resp.Text, &result); err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return nil, apierr.AIService(apierr.CodeEmptyResponse, err)
		}
		return nil, apierr.AIService(apierr.CodeInvalidJSON, err)
	}

	var byIndex map[string]any
	if err := json.Unmarshal(result.Evaluations, &byIndex); err != nil || byIndex == nil {
		return nil, apierr.AIService(apierr.CodeInvalidFormat, eris.New("assistant: evaluations missing or not an object"))
	}

	evals := make([]string, len(products))
	for i := range products {
		text, _ := byIndex[fmt.Sprint(i+1)].(string)
		if strings.TrimSpace(text) == "" {
			text = NoEvaluation
		}
		evals[i] = text
	}
	return evals, nil
}

func (s *Service) lookup(ctx context.Context, key string, dst any) bool {
	err := cache.GetJSON(ctx, s.cache, key, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		zap.L().Warn("assistant: cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *Service) remember(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, s.cache, key, v, s.ttl); err != nil {
		zap.L().Warn("assistant: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
