package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDatabaseDown  AlertType = "database_down"
	AlertBreakerOpen   AlertType = "breaker_open"
	AlertCostOverrun   AlertType = "cost_overrun"
	AlertPayoutBacklog AlertType = "payout_backlog"
	AlertPayoutOverdue AlertType = "payout_overdue"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns snapshots into alerts and delivers them.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts whose thresholds snap breaches. A zero
// threshold disables its alert.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if !snap.DatabaseUp {
		alerts = append(alerts, Alert{
			Type:      AlertDatabaseDown,
			Severity:  "critical",
			Message:   "Database is unreachable",
			Timestamp: now,
		})
	}

	if len(snap.OpenBreakers) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertBreakerOpen,
			Severity: "high",
			Message:  fmt.Sprintf("Circuit open for %s", strings.Join(snap.OpenBreakers, ", ")),
			Details: map[string]any{
				"breakers": snap.OpenBreakers,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.LLMCostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"LLM cost $%.2f exceeds threshold $%.2f (%d calls)",
				snap.LLMCostUSD, a.cfg.CostThresholdUSD, snap.LLMCalls,
			),
			Details: map[string]any{
				"cost_usd":      snap.LLMCostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"calls":         snap.LLMCalls,
			},
			Timestamp: now,
		})
	}

	if a.cfg.PayoutBacklogThreshold > 0 && snap.PendingPayouts >= a.cfg.PayoutBacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPayoutBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d payouts pending (%s €), threshold %d",
				snap.PendingPayouts, snap.PendingAmount.StringFixed(2), a.cfg.PayoutBacklogThreshold,
			),
			Details: map[string]any{
				"pending":   snap.PendingPayouts,
				"amount":    snap.PendingAmount.StringFixed(2),
				"threshold": a.cfg.PayoutBacklogThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.PayoutMaxAgeHours > 0 && snap.OldestPendingHours > float64(a.cfg.PayoutMaxAgeHours) {
		alerts = append(alerts, Alert{
			Type:     AlertPayoutOverdue,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Oldest pending payout is %.0fh old, limit %dh",
				snap.OldestPendingHours, a.cfg.PayoutMaxAgeHours,
			),
			Details: map[string]any{
				"oldest_hours": snap.OldestPendingHours,
				"limit_hours":  a.cfg.PayoutMaxAgeHours,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// webhookPayload carries a chat-friendly text line next to the alert so
// the same hook works for Slack-style receivers and plain JSON consumers.
type webhookPayload struct {
	Text  string `json:"text"`
	Alert Alert  `json:"alert"`
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}
	sent := 0
	for _, alert := range alerts {
		err := a.post(ctx, webhookPayload{
			Text:  fmt.Sprintf("[findius][%s] %s", alert.Severity, alert.Message),
			Alert: alert,
		})
		if err != nil {
			zap.L().Error("monitoring: alert not delivered", zap.String("type", string(alert.Type)), zap.Error(err))
			continue
		}
		zap.L().Info("monitoring: alert delivered", zap.String("type", string(alert.Type)))
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= http.StatusBadRequest {
		return eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
	}
	return nil
}
