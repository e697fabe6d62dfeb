// Package community implements comments, ratings, referrals, payouts and
// the reputation points they earn.
package community

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/config"
	"github.com/findius/findius/internal/store"
)

// Reputation points per action.
const (
	PointsComment        = 5
	PointsReply          = 2
	PointsLikeReceived   = 1
	PointsFirstRating    = 2
	PointsReferralSignup = 10
)

// Service runs the community features on top of a Store.
type Service struct {
	store     store.Store
	userShare decimal.Decimal
	minPayout decimal.Decimal
	now       func() time.Time
}

// New creates a Service with the commission share and payout threshold
// from cfg.
func New(st store.Store, cfg config.CommunityConfig) *Service {
	return &Service{
		store:     st,
		userShare: decimal.NewFromFloat(cfg.UserCommissionShare),
		minPayout: decimal.NewFromFloat(cfg.MinPayout).Round(2),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MinPayout is the smallest balance that can be paid out.
func (s *Service) MinPayout() decimal.Decimal { return s.minPayout }

// award changes a user's reputation. Failures are logged, never returned:
// the action that earned the points has already been stored.
func (s *Service) award(ctx context.Context, userID string, delta int, reason string) {
	if userID == "" || delta == 0 {
		return
	}
	p, err := s.store.AddReputation(ctx, userID, delta)
	if err != nil {
		zap.L().Warn("community: reputation update failed",
			zap.String("user_id", userID), zap.Int("delta", delta), zap.String("reason", reason), zap.Error(err))
		return
	}
	zap.L().Debug("community: reputation changed",
		zap.String("user_id", userID),
		zap.Int("delta", delta),
		zap.String("reason", reason),
		zap.Int("points", p.ReputationPoints),
		zap.String("rank", p.ReputationRank),
	)
}

func (s *Service) requirePage(ctx context.Context, slug string) error {
	ok, err := s.store.PageExists(ctx, slug)
	if err != nil {
		return err
	}
	if !ok {
		return errPageNotFound
	}
	return nil
}
