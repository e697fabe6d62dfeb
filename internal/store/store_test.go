package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findius/findius/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedPage(t *testing.T, s Store, slug string) *model.Page {
	t.Helper()
	p := &model.Page{
		Slug:       slug,
		Query:      "Bestes ETF Depot",
		Title:      "Die besten ETF Depots 2025",
		ContentMDX: "## Vergleich\n\nText",
		Category:   "depot",
		ChatContext: []model.QA{
			{Question: "Wie viel willst du anlegen?", Answer: "100 € im Monat"},
		},
	}
	require.NoError(t, s.CreatePage(context.Background(), p))
	return p
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetPage", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := seedPage(t, s, "bestes-etf-depot")
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, model.IndexStatusNoIndex, p.IndexStatus)

		got, err := s.GetPage(ctx, "bestes-etf-depot")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, "Die besten ETF Depots 2025", got.Title)
		assert.Equal(t, model.IndexStatusNoIndex, got.IndexStatus)
		require.Len(t, got.ChatContext, 1)
		assert.Equal(t, "100 € im Monat", got.ChatContext[0].Answer)

		exists, err := s.PageExists(ctx, "bestes-etf-depot")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.PageExists(ctx, "unbekannt")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("CreatePageDuplicateSlug", func(t *testing.T) {
		s := newStore(t)
		seedPage(t, s, "dup")

		err := s.CreatePage(context.Background(), &model.Page{Slug: "dup", Query: "q", Title: "t", ContentMDX: "c"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("GetPageNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetPage(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListPagesAndIndexStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedPage(t, s, "a")
		seedPage(t, s, "b")

		require.NoError(t, s.SetIndexStatus(ctx, "a", model.IndexStatusIndex))
		assert.ErrorIs(t, s.SetIndexStatus(ctx, "missing", model.IndexStatusIndex), ErrNotFound)

		all, err := s.ListPages(ctx, PageFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		indexed, err := s.ListPages(ctx, PageFilter{IndexStatus: model.IndexStatusIndex})
		require.NoError(t, err)
		require.Len(t, indexed, 1)
		assert.Equal(t, "a", indexed[0].Slug)

		byCategory, err := s.ListPages(ctx, PageFilter{Category: "strom"})
		require.NoError(t, err)
		assert.Empty(t, byCategory)

		limited, err := s.ListPages(ctx, PageFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("IncrementViews", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedPage(t, s, "views")

		for i := 0; i < 3; i++ {
			require.NoError(t, s.IncrementViews(ctx, "views"))
		}
		got, err := s.GetPage(ctx, "views")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Views)
	})

	t.Run("Partners", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		partners := []model.AffiliatePartner{
			{ID: "tr", Name: "Trade Republic", AffiliateURL: "https://example.com/tr", Category: "depot", IsActive: true},
			{ID: "sc", Name: "Scalable Capital", AffiliateURL: "https://example.com/sc", Category: "depot", Subcategory: "etf", IsActive: true},
			{ID: "old", Name: "Alt Broker", AffiliateURL: "https://example.com/old", Category: "depot", IsActive: false},
			{ID: "tibber", Name: "Tibber", AffiliateURL: "https://example.com/tibber", Category: "strom", IsActive: true},
		}
		n, err := s.UpsertPartners(ctx, partners)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		active, err := s.ListActivePartners(ctx, "depot")
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "Scalable Capital", active[0].Name)
		assert.Equal(t, "etf", active[0].Subcategory)
		assert.Equal(t, "Trade Republic", active[1].Name)

		// Re-import deactivates Trade Republic.
		partners[0].IsActive = false
		_, err = s.UpsertPartners(ctx, partners[:1])
		require.NoError(t, err)
		active, err = s.ListActivePartners(ctx, "depot")
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("ProfilesAndReputation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.EnsureProfile(ctx, "user-1"))
		require.NoError(t, s.EnsureProfile(ctx, "user-1"))

		p, err := s.GetProfile(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, model.RankNewcomer, p.ReputationRank)
		assert.Empty(t, p.Username)

		p.Username = "anna"
		require.NoError(t, s.UpdateProfile(ctx, p))
		byName, err := s.GetProfileByUsername(ctx, "anna")
		require.NoError(t, err)
		assert.Equal(t, "user-1", byName.ID)

		require.NoError(t, s.EnsureProfile(ctx, "user-2"))
		err = s.UpdateProfile(ctx, &model.Profile{ID: "user-2", Username: "anna"})
		assert.ErrorIs(t, err, ErrConflict)

		updated, err := s.AddReputation(ctx, "user-1", 55)
		require.NoError(t, err)
		assert.Equal(t, 55, updated.ReputationPoints)
		assert.Equal(t, model.RankFinder, updated.ReputationRank)

		updated, err = s.AddReputation(ctx, "user-1", -100)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.ReputationPoints)
		assert.Equal(t, model.RankNewcomer, updated.ReputationRank)

		_, err = s.AddReputation(ctx, "ghost", 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CommentsAndLikes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedPage(t, s, "page")
		require.NoError(t, s.EnsureProfile(ctx, "author"))
		require.NoError(t, s.UpdateProfile(ctx, &model.Profile{ID: "author", Username: "autor"}))

		root := &model.Comment{PageSlug: "page", UserID: "author", UserEmail: "a@example.de", Content: "Super Vergleich"}
		require.NoError(t, s.CreateComment(ctx, root))
		reply := &model.Comment{PageSlug: "page", UserID: "other", UserEmail: "o@example.de", ParentID: root.ID, Content: "Finde ich auch"}
		require.NoError(t, s.CreateComment(ctx, reply))

		liked, err := s.ToggleLike(ctx, root.ID, "other")
		require.NoError(t, err)
		assert.True(t, liked)

		comments, err := s.ListComments(ctx, "page", "other")
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, root.ID, comments[0].ID)
		assert.Equal(t, 1, comments[0].LikesCount)
		assert.True(t, comments[0].UserLiked)
		assert.Equal(t, "autor", comments[0].Username)
		assert.Equal(t, root.ID, comments[1].ParentID)

		anon, err := s.ListComments(ctx, "page", "")
		require.NoError(t, err)
		assert.False(t, anon[0].UserLiked)

		liked, err = s.ToggleLike(ctx, root.ID, "other")
		require.NoError(t, err)
		assert.False(t, liked)

		got, err := s.GetComment(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.LikesCount)

		top, err := s.ListUserComments(ctx, "other", 20)
		require.NoError(t, err)
		assert.Empty(t, top, "replies are not listed on profiles")

		assert.ErrorIs(t, s.DeleteComment(ctx, root.ID, "other"), ErrNotFound)
		require.NoError(t, s.DeleteComment(ctx, root.ID, "author"))

		comments, err = s.ListComments(ctx, "page", "")
		require.NoError(t, err)
		assert.Empty(t, comments, "replies are deleted with their parent")

		_, err = s.GetComment(ctx, root.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Ratings", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		seedPage(t, s, "rated")

		created, err := s.UpsertRating(ctx, &model.Rating{PageSlug: "rated", UserID: "u1", Score: 4})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.UpsertRating(ctx, &model.Rating{PageSlug: "rated", UserID: "u1", Score: 2})
		require.NoError(t, err)
		assert.False(t, created)

		_, err = s.UpsertRating(ctx, &model.Rating{PageSlug: "rated", UserID: "u2", Score: 5})
		require.NoError(t, err)

		sum, err := s.RatingSummary(ctx, "rated", "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Count)
		assert.InDelta(t, 3.5, sum.Average, 0.001)
		require.NotNil(t, sum.UserScore)
		assert.Equal(t, 2, *sum.UserScore)

		sum, err = s.RatingSummary(ctx, "rated", "")
		require.NoError(t, err)
		assert.Nil(t, sum.UserScore)

		empty, err := s.RatingSummary(ctx, "other", "u1")
		require.NoError(t, err)
		assert.Equal(t, 0, empty.Count)
		assert.InDelta(t, 0, empty.Average, 0.001)

		ratings, err := s.ListUserRatings(ctx, "u1", 20)
		require.NoError(t, err)
		require.Len(t, ratings, 1)
		assert.Equal(t, 2, ratings[0].Score)
	})

	t.Run("Referrals", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ref := &model.Referral{ReferrerID: "ref-user", VisitorID: "visitor", PageSlug: "page", RefCode: "anna"}
		require.NoError(t, s.CreateReferral(ctx, ref))

		list, err := s.ListReferrals(ctx, "ref-user")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.False(t, list[0].Converted)
		assert.True(t, list[0].CommissionUser.IsZero())

		conv := Conversion{
			Total:       decimal.RequireFromString("40.00"),
			User:        decimal.RequireFromString("20.00"),
			ConvertedAt: time.Now().UTC(),
		}
		require.NoError(t, s.ConvertReferral(ctx, ref.ID, conv))
		assert.ErrorIs(t, s.ConvertReferral(ctx, ref.ID, conv), ErrConflict)
		assert.ErrorIs(t, s.ConvertReferral(ctx, "missing", conv), ErrNotFound)

		got, err := s.GetReferral(ctx, ref.ID)
		require.NoError(t, err)
		assert.True(t, got.Converted)
		require.NotNil(t, got.ConvertedAt)
		assert.True(t, got.CommissionUser.Equal(decimal.RequireFromString("20")))
		assert.True(t, got.CommissionTotal.Equal(decimal.RequireFromString("40")))
	})

	t.Run("Payouts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := &model.Payout{UserID: "u1", Amount: decimal.RequireFromString("30.50"), PaypalEmail: "u1@example.de"}
		require.NoError(t, s.CreatePayout(ctx, p))
		assert.Equal(t, model.PayoutPending, p.Status)

		second := &model.Payout{UserID: "u1", Amount: decimal.RequireFromString("1"), PaypalEmail: "u1@example.de"}
		assert.ErrorIs(t, s.CreatePayout(ctx, second), ErrConflict)

		require.NoError(t, s.UpdatePayoutStatus(ctx, p.ID, StatusChange{From: model.PayoutPending, To: model.PayoutProcessing}))
		err := s.UpdatePayoutStatus(ctx, p.ID, StatusChange{From: model.PayoutPending, To: model.PayoutFailed})
		assert.ErrorIs(t, err, ErrConflict)

		now := time.Now().UTC()
		require.NoError(t, s.UpdatePayoutStatus(ctx, p.ID, StatusChange{
			From: model.PayoutProcessing, To: model.PayoutCompleted, ProcessedAt: &now,
		}))

		got, err := s.GetPayout(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PayoutCompleted, got.Status)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("30.5")))
		require.NotNil(t, got.ProcessedAt)

		// Completed payouts free the open slot.
		require.NoError(t, s.CreatePayout(ctx, second))

		mine, err := s.ListPayouts(ctx, PayoutFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		pending, err := s.ListPayouts(ctx, PayoutFilter{Status: model.PayoutPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, second.ID, pending[0].ID)

		assert.ErrorIs(t, s.UpdatePayoutStatus(ctx, "missing", StatusChange{From: model.PayoutPending, To: model.PayoutFailed}), ErrNotFound)
	})
}
