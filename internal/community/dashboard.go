package community

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

// profileListLimit is how many comments and ratings a profile shows.
const profileListLimit = 20

// Totals summarises a user's referral activity.
type Totals struct {
	Clicks      int     `json:"clicks"`
	Conversions int     `json:"conversions"`
	Balance     Balance `json:"balance"`
}

// Dashboard is everything the signed-in user sees about their account.
type Dashboard struct {
	Profile   *model.Profile   `json:"profile"`
	Referrals []model.Referral `json:"referrals"`
	Comments  []model.Comment  `json:"comments"`
	Ratings   []model.Rating   `json:"ratings"`
	Payouts   []model.Payout   `json:"payouts"`
	Totals    Totals           `json:"totals"`
	CanPayout bool             `json:"can_payout"`
	MinPayout string           `json:"min_payout"`
}

// Dashboard loads the account overview of userID.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	if err := s.store.EnsureProfile(ctx, userID); err != nil {
		return nil, err
	}

	d := &Dashboard{MinPayout: s.minPayout.StringFixed(2)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetProfile(gctx, userID)
		d.Profile = p
		return eris.Wrap(err, "community: dashboard profile")
	})
	g.Go(func() error {
		refs, err := s.store.ListReferrals(gctx, userID)
		d.Referrals = refs
		return eris.Wrap(err, "community: dashboard referrals")
	})
	g.Go(func() error {
		comments, err := s.store.ListUserComments(gctx, userID, 0)
		d.Comments = comments
		return eris.Wrap(err, "community: dashboard comments")
	})
	g.Go(func() error {
		ratings, err := s.store.ListUserRatings(gctx, userID, 0)
		d.Ratings = ratings
		return eris.Wrap(err, "community: dashboard ratings")
	})
	g.Go(func() error {
		payouts, err := s.store.ListPayouts(gctx, store.PayoutFilter{UserID: userID, Limit: allPayouts})
		d.Payouts = payouts
		return eris.Wrap(err, "community: dashboard payouts")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.Totals.Clicks = len(d.Referrals)
	for _, r := range d.Referrals {
		if r.Converted {
			d.Totals.Conversions++
		}
	}
	d.Totals.Balance = computeBalance(d.Referrals, d.Payouts)
	d.CanPayout = !hasOpenPayout(d.Payouts) && d.Totals.Balance.Available.GreaterThanOrEqual(s.minPayout)
	return d, nil
}

// PublicProfile is the page shown at /user/{username}.
type PublicProfile struct {
	Profile  *model.Profile  `json:"profile"`
	Comments []model.Comment `json:"comments"`
	Ratings  []model.Rating  `json:"ratings"`
}

// Profile loads a public profile with the latest top-level comments and
// ratings of the user.
func (s *Service) Profile(ctx context.Context, username string) (*PublicProfile, error) {
	p, err := s.store.GetProfileByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errProfileNotFound
		}
		return nil, err
	}

	out := &PublicProfile{Profile: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		comments, err := s.store.ListUserComments(gctx, p.ID, profileListLimit)
		out.Comments = comments
		return err
	})
	g.Go(func() error {
		ratings, err := s.store.ListUserRatings(gctx, p.ID, profileListLimit)
		out.Ratings = ratings
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "community: profile %s", username)
	}
	for i := range out.Comments {
		out.Comments[i].Username = out.Comments[i].DisplayName()
	}
	return out, nil
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_-]{3,30}$`)

// ProfileUpdate is a change to the editable profile fields.
type ProfileUpdate struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// UpdateProfile sets the username and avatar of userID. Usernames double
// as referral codes and are stored lowercase.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.Profile, error) {
	username := strings.ToLower(strings.TrimSpace(upd.Username))
	if !usernamePattern.MatchString(username) {
		return nil, apierr.Validation("Der Benutzername muss 3 bis 30 Zeichen lang sein und darf nur Buchstaben, Ziffern, _ und - enthalten.")
	}
	avatar := strings.TrimSpace(upd.AvatarURL)
	if avatar != "" && !strings.HasPrefix(avatar, "https://") {
		return nil, apierr.Validation("Das Profilbild muss eine https-Adresse sein.")
	}

	if err := s.store.EnsureProfile(ctx, userID); err != nil {
		return nil, err
	}
	err := s.store.UpdateProfile(ctx, &model.Profile{ID: userID, Username: username, AvatarURL: avatar})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apierr.Conflict("Dieser Benutzername ist bereits vergeben.")
		}
		return nil, eris.Wrapf(err, "community: update profile %s", userID)
	}
	return s.store.GetProfile(ctx, userID)
}
