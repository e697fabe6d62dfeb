package community

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

// Referral cookie settings.
const (
	RefCookie     = "findius_ref"
	VisitorCookie = "findius_visitor_id"
	RefCookieTTL  = 30 * 24 * time.Hour
)

// Click is a visit through a referral link.
type Click struct {
	RefCode   string `json:"ref_code"`
	PageSlug  string `json:"page_slug"`
	VisitorID string `json:"visitor_id,omitempty"`
}

// TrackResult tells the caller which cookies to set. Referral is nil when
// the code does not belong to any user.
type TrackResult struct {
	RefCode   string          `json:"ref_code"`
	VisitorID string          `json:"visitor_id"`
	Referral  *model.Referral `json:"referral,omitempty"`
}

// Track records a referral click. The referral code is the referrer's
// username; unknown codes are ignored.
func (s *Service) Track(ctx context.Context, click Click) (*TrackResult, error) {
	code := strings.TrimSpace(click.RefCode)
	if code == "" {
		return nil, apierr.Validation("Referral-Code fehlt.")
	}
	res := &TrackResult{RefCode: code, VisitorID: click.VisitorID}
	if res.VisitorID == "" {
		res.VisitorID = uuid.New().String()
	}

	referrer, err := s.store.GetProfileByUsername(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Debug("community: unknown referral code", zap.String("ref_code", code))
			return res, nil
		}
		return nil, err
	}

	ref := &model.Referral{
		ReferrerID: referrer.ID,
		VisitorID:  res.VisitorID,
		PageSlug:   click.PageSlug,
		RefCode:    code,
	}
	if err := s.store.CreateReferral(ctx, ref); err != nil {
		return nil, eris.Wrap(err, "community: track referral")
	}
	res.Referral = ref
	return res, nil
}

// Convert books the commission of a referral. The referrer receives the
// configured share of total, rounded to cents.
func (s *Service) Convert(ctx context.Context, id string, total decimal.Decimal) (*model.Referral, error) {
	if !total.IsPositive() {
		return nil, apierr.Validation("Die Provision muss größer als 0 sein.")
	}
	total = total.Round(2)
	conv := store.Conversion{
		Total:       total,
		User:        total.Mul(s.userShare).Round(2),
		ConvertedAt: s.now(),
	}
	if err := s.store.ConvertReferral(ctx, id, conv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apierr.Conflict("Dieser Referral wurde bereits umgewandelt.")
		}
		return nil, eris.Wrapf(err, "community: convert referral %s", id)
	}

	ref, err := s.store.GetReferral(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "community: reload referral %s", id)
	}
	s.award(ctx, ref.ReferrerID, PointsReferralSignup, "referral")
	zap.L().Info("community: referral converted",
		zap.String("id", id),
		zap.String("referrer_id", ref.ReferrerID),
		zap.String("commission_total", conv.Total.StringFixed(2)),
		zap.String("commission_user", conv.User.StringFixed(2)),
	)
	return ref, nil
}
