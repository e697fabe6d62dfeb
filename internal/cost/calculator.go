// Package cost prices LLM token usage and keeps running totals per model.
package cost

import (
	"sort"
	"sync"
)

// ModelRate is the USD price per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Rates maps model IDs to their token prices.
type Rates map[string]ModelRate

// DefaultRates returns list prices for the models the platform uses.
func DefaultRates() Rates {
	return Rates{
		"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
		"gpt-4o":                     {Input: 2.50, Output: 10.00},
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"gemini-2.5-flash":           {Input: 0.30, Output: 2.50},
		"gemini-2.5-pro":             {Input: 1.25, Output: 10.00},
	}
}

// Merge returns a copy of r with overrides applied on top.
func (r Rates) Merge(overrides Rates) Rates {
	out := make(Rates, len(r)+len(overrides))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Usage is the running total for one model.
type Usage struct {
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	USD          float64 `json:"usd"`
}

// Calculator prices completions and accumulates per-model usage. It is safe
// for concurrent use.
type Calculator struct {
	rates Rates

	mu    sync.Mutex
	usage map[string]*Usage
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates, usage: make(map[string]*Usage)}
}

// Price returns the USD cost of a single completion. Unknown models cost 0.
func (c *Calculator) Price(model string, input, output int) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Record prices a completion and adds it to the model's running total.
func (c *Calculator) Record(model string, input, output int) float64 {
	usd := c.Price(model, input, output)

	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.usage[model]
	if !ok {
		u = &Usage{Model: model}
		c.usage[model] = u
	}
	u.Calls++
	u.InputTokens += int64(input)
	u.OutputTokens += int64(output)
	u.USD += usd
	return usd
}

// Snapshot returns the running totals sorted by model.
func (c *Calculator) Snapshot() []Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Usage, 0, len(c.usage))
	for _, u := range c.usage {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Total returns the USD spent across all models.
func (c *Calculator) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum float64
	for _, u := range c.usage {
		sum += u.USD
	}
	return sum
}
