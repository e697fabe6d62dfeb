package community

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

// allPayouts is the limit used when every payout of a user is needed.
const allPayouts = 10000

// Balance is the commission account of a user.
type Balance struct {
	Earned decimal.Decimal `json:"earned"`
	Paid   decimal.Decimal `json:"paid"`
	// Reserved is held by pending or processing payouts.
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
}

func computeBalance(refs []model.Referral, payouts []model.Payout) Balance {
	var b Balance
	for _, r := range refs {
		b.Earned = b.Earned.Add(r.CommissionUser)
	}
	for _, p := range payouts {
		switch {
		case p.Status == model.PayoutCompleted:
			b.Paid = b.Paid.Add(p.Amount)
		case p.Status.Open():
			b.Reserved = b.Reserved.Add(p.Amount)
		}
	}
	b.Available = b.Earned.Sub(b.Paid).Sub(b.Reserved)
	return b
}

func hasOpenPayout(payouts []model.Payout) bool {
	for _, p := range payouts {
		if p.Status.Open() {
			return true
		}
	}
	return false
}

// Balance loads the commission account of userID.
func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	refs, payouts, err := s.ledger(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return computeBalance(refs, payouts), nil
}

func (s *Service) ledger(ctx context.Context, userID string) ([]model.Referral, []model.Payout, error) {
	refs, err := s.store.ListReferrals(ctx, userID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "community: referrals of %s", userID)
	}
	payouts, err := s.store.ListPayouts(ctx, store.PayoutFilter{UserID: userID, Limit: allPayouts})
	if err != nil {
		return nil, nil, eris.Wrapf(err, "community: payouts of %s", userID)
	}
	return refs, payouts, nil
}

var errOpenPayout = apierr.Conflict("Du hast bereits eine offene Auszahlung.")

// RequestPayout pays out the whole available balance to a PayPal account.
// A second request while one is open is rejected.
func (s *Service) RequestPayout(ctx context.Context, userID, paypalEmail string) (*model.Payout, error) {
	paypalEmail = strings.TrimSpace(paypalEmail)
	if addr, err := mail.ParseAddress(paypalEmail); err != nil || addr.Address != paypalEmail {
		return nil, apierr.Validation("Bitte gib eine gültige PayPal-E-Mail-Adresse an.")
	}

	refs, payouts, err := s.ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	if hasOpenPayout(payouts) {
		return nil, errOpenPayout
	}
	bal := computeBalance(refs, payouts)
	if bal.Available.LessThan(s.minPayout) {
		return nil, apierr.Validation("Eine Auszahlung ist ab " + euro(s.minPayout) + " möglich.")
	}

	p := &model.Payout{
		UserID:      userID,
		Amount:      bal.Available.Round(2),
		PaypalEmail: paypalEmail,
		Status:      model.PayoutPending,
	}
	if err := s.store.CreatePayout(ctx, p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errOpenPayout
		}
		return nil, eris.Wrap(err, "community: create payout")
	}
	zap.L().Info("community: payout requested",
		zap.String("id", p.ID), zap.String("user_id", userID), zap.String("amount", p.Amount.StringFixed(2)))
	return p, nil
}

// Advance moves a payout along pending → processing → completed, or to
// failed from any open state.
func (s *Service) Advance(ctx context.Context, id string, to model.PayoutStatus, reason string) (*model.Payout, error) {
	p, err := s.store.GetPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(to) {
		return nil, apierr.Conflict("Statuswechsel von " + string(p.Status) + " nach " + string(to) + " ist nicht erlaubt.")
	}

	change := store.StatusChange{From: p.Status, To: to}
	if to == model.PayoutFailed {
		change.FailureReason = strings.TrimSpace(reason)
	}
	if to == model.PayoutCompleted || to == model.PayoutFailed {
		now := s.now()
		change.ProcessedAt = &now
	}
	if err := s.store.UpdatePayoutStatus(ctx, id, change); err != nil {
		return nil, eris.Wrapf(err, "community: advance payout %s", id)
	}
	zap.L().Info("community: payout status changed",
		zap.String("id", id), zap.String("from", string(p.Status)), zap.String("to", string(to)))
	return s.store.GetPayout(ctx, id)
}

// euro formats an amount the German way, e.g. "25,00 €".
func euro(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " €"
}
