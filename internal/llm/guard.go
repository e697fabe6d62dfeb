package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/findius/findius/internal/cost"
	"github.com/findius/findius/internal/resilience"
)

type guarded struct {
	next    Client
	name    string
	breaker *resilience.Breaker
	calc    *cost.Calculator
	timeout time.Duration
}

// Guard wraps a provider client with a per-call timeout, a circuit breaker
// and cost attribution. calc and breaker may be nil.
func Guard(next Client, name string, breaker *resilience.Breaker, calc *cost.Calculator, timeout time.Duration) Client {
	return &guarded{next: next, name: name, breaker: breaker, calc: calc, timeout: timeout}
}

func (g *guarded) Complete(ctx context.Context, req Request) (*Response, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	call := func(ctx context.Context) (*Response, error) { return g.next.Complete(ctx, req) }

	var (
		resp *Response
		err  error
	)
	if g.breaker != nil {
		resp, err = resilience.Call(ctx, g.breaker, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			err = &ProviderError{Provider: g.name, Err: err}
		}
		zap.L().Warn("llm: completion failed",
			zap.String("provider", g.name),
			zap.String("operation", req.Operation),
			zap.Stringer("tier", req.Tier),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	var usd float64
	if g.calc != nil {
		usd = g.calc.Record(resp.Model, resp.InputTokens, resp.OutputTokens)
	}
	zap.L().Info("cost attribution",
		zap.String("provider", g.name),
		zap.String("model", resp.Model),
		zap.String("operation", req.Operation),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Float64("estimated_cost_usd", usd),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}
