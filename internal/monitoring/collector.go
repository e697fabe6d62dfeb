// Package monitoring watches platform health and posts alerts to a webhook.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/findius/findius/internal/cost"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

// MetricsSnapshot holds a point-in-time view of platform health.
type MetricsSnapshot struct {
	DatabaseUp bool `json:"database_up"`

	// Language model spend since process start.
	LLMCalls   int     `json:"llm_calls"`
	LLMCostUSD float64 `json:"llm_cost_usd"`

	// Breakers currently rejecting calls.
	OpenBreakers []string `json:"open_breakers,omitempty"`

	// Payouts waiting for review.
	PendingPayouts     int             `json:"pending_payouts"`
	PendingAmount      decimal.Decimal `json:"pending_amount"`
	OldestPendingHours float64         `json:"oldest_pending_hours"`
	ProcessingPayouts  int             `json:"processing_payouts"`

	CollectedAt time.Time `json:"collected_at"`
}

// Store is the part of the store the collector reads.
type Store interface {
	Ping(ctx context.Context) error
	ListPayouts(ctx context.Context, filter store.PayoutFilter) ([]model.Payout, error)
}

// BreakerStates reports circuit breaker states by name.
type BreakerStates interface {
	States() map[string]string
}

// Spend reports language model usage per model.
type Spend interface {
	Snapshot() []cost.Usage
}

// Collector gathers metrics from the store, breakers and cost tracker.
type Collector struct {
	store    Store
	breakers BreakerStates
	spend    Spend
	now      func() time.Time
}

// NewCollector creates a metrics collector. breakers and spend may be nil.
func NewCollector(st Store, breakers BreakerStates, spend Spend) *Collector {
	return &Collector{store: st, breakers: breakers, spend: spend, now: time.Now}
}

const payoutScanLimit = 1000

// Collect gathers a snapshot. A failed database ping is recorded in the
// snapshot; payout metrics are then skipped.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{CollectedAt: now}

	if c.spend != nil {
		for _, u := range c.spend.Snapshot() {
			snap.LLMCalls += u.Calls
			snap.LLMCostUSD += u.USD
		}
	}
	if c.breakers != nil {
		for name, state := range c.breakers.States() {
			if state == "open" {
				snap.OpenBreakers = append(snap.OpenBreakers, name)
			}
		}
		sort.Strings(snap.OpenBreakers)
	}

	if err := c.store.Ping(ctx); err != nil {
		return snap, nil
	}
	snap.DatabaseUp = true

	pending, err := c.store.ListPayouts(ctx, store.PayoutFilter{Status: model.PayoutPending, Limit: payoutScanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pending payouts")
	}
	snap.PendingPayouts = len(pending)
	for _, p := range pending {
		snap.PendingAmount = snap.PendingAmount.Add(p.Amount)
		if age := now.Sub(p.RequestedAt).Hours(); age > snap.OldestPendingHours {
			snap.OldestPendingHours = age
		}
	}

	processing, err := c.store.ListPayouts(ctx, store.PayoutFilter{Status: model.PayoutProcessing, Limit: payoutScanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list processing payouts")
	}
	snap.ProcessingPayouts = len(processing)
	return snap, nil
}
