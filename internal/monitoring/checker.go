package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/findius/findius/internal/config"
)

// repeatAfter is how long an alert type stays quiet after being sent.
const repeatAfter = time.Hour

// Checker runs periodic alert checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lastSent  map[AlertType]time.Time
	now       func() time.Time
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lastSent:  make(map[AlertType]time.Time),
		now:       time.Now,
	}
}

// Run checks once per interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects a snapshot and sends the alerts that are not muted. It
// returns the number of alerts sent.
func (c *Checker) Check(ctx context.Context) int {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		zap.L().Error("monitoring: failed to collect metrics", zap.Error(err))
		return 0
	}

	now := c.now()
	var due []Alert
	for _, a := range c.alerter.Evaluate(snap) {
		if last, ok := c.lastSent[a.Type]; ok && now.Sub(last) < repeatAfter {
			continue
		}
		due = append(due, a)
	}
	if len(due) == 0 {
		zap.L().Debug("monitoring: no alerts due")
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, due)
	if sent == len(due) {
		for _, a := range due {
			c.lastSent[a.Type] = now
		}
	}
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_due", len(due)),
		zap.Int("alerts_sent", sent),
	)
	return sent
}
