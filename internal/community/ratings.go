package community

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/model"
)

// Rate sets userID's score for a page, replacing an earlier one, and
// returns the updated summary. Only the first rating of a page earns
// reputation.
func (s *Service) Rate(ctx context.Context, pageSlug, userID string, score int) (*model.RatingSummary, error) {
	if score < 1 || score > 5 {
		return nil, apierr.Validation("Bitte vergib zwischen 1 und 5 Sternen.")
	}
	if err := s.requirePage(ctx, pageSlug); err != nil {
		return nil, err
	}
	if err := s.store.EnsureProfile(ctx, userID); err != nil {
		return nil, err
	}

	created, err := s.store.UpsertRating(ctx, &model.Rating{PageSlug: pageSlug, UserID: userID, Score: score})
	if err != nil {
		return nil, eris.Wrapf(err, "community: rate %s", pageSlug)
	}
	if created {
		s.award(ctx, userID, PointsFirstRating, "rating")
	}
	return s.RatingSummary(ctx, pageSlug, userID)
}

// RatingSummary returns average, count and the viewer's own score.
func (s *Service) RatingSummary(ctx context.Context, pageSlug, viewerID string) (*model.RatingSummary, error) {
	sum, err := s.store.RatingSummary(ctx, pageSlug, viewerID)
	if err != nil {
		return nil, eris.Wrapf(err, "community: rating summary %s", pageSlug)
	}
	return sum, nil
}
