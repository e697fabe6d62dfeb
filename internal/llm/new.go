package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/findius/findius/internal/config"
	"github.com/findius/findius/internal/cost"
	"github.com/findius/findius/internal/resilience"
	"github.com/findius/findius/pkg/anthropic"
	"github.com/findius/findius/pkg/gemini"
	"github.com/findius/findius/pkg/openai"
)

// New builds the configured provider client wrapped with Guard. The breaker
// is registered under "llm" so /api/health reports it.
func New(ctx context.Context, cfg *config.Config, breakers *resilience.Breakers, calc *cost.Calculator) (Client, error) {
	fast, quality := cfg.LLM.Models()

	var (
		provider Client
		err      error
	)
	switch cfg.LLM.Provider {
	case "openai":
		provider = NewOpenAI(openai.NewClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL), fast, quality)
	case "anthropic":
		provider = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), fast, quality)
	case "gemini":
		var gc gemini.Client
		gc, err = gemini.NewClient(ctx, cfg.Gemini.Key, "")
		if err != nil {
			return nil, eris.Wrap(err, "llm: init gemini")
		}
		provider = NewGemini(gc, fast, quality)
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
	}

	var breaker *resilience.Breaker
	if breakers != nil {
		breaker = breakers.Add("llm", resilience.BreakerFromConfig(
			cfg.LLM.Breaker.FailureThreshold, cfg.LLM.Breaker.ResetTimeoutSecs))
	}
	timeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second
	return Guard(provider, cfg.LLM.Provider, breaker, calc, timeout), nil
}
