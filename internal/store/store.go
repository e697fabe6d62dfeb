// Package store persists pages, affiliate partners and community data.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/findius/findius/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrConflict is returned when a write violates a uniqueness or state constraint.
	ErrConflict = eris.New("store: conflict")
)

// PageFilter specifies criteria for listing pages.
type PageFilter struct {
	Category    string            `json:"category,omitempty"`
	IndexStatus model.IndexStatus `json:"index_status,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Offset      int               `json:"offset,omitempty"`
}

// PayoutFilter specifies criteria for listing payouts.
type PayoutFilter struct {
	UserID string             `json:"user_id,omitempty"`
	Status model.PayoutStatus `json:"status,omitempty"`
	Limit  int                `json:"limit,omitempty"`
}

// Conversion records the commission earned by a converted referral.
type Conversion struct {
	Total       decimal.Decimal
	User        decimal.Decimal
	ConvertedAt time.Time
}

// StatusChange moves a payout from one status to another.
type StatusChange struct {
	From          model.PayoutStatus
	To            model.PayoutStatus
	FailureReason string
	ProcessedAt   *time.Time
}

// Store defines the persistence interface for the platform.
type Store interface {
	// Pages
	CreatePage(ctx context.Context, page *model.Page) error
	GetPage(ctx context.Context, slug string) (*model.Page, error)
	PageExists(ctx context.Context, slug string) (bool, error)
	ListPages(ctx context.Context, filter PageFilter) ([]model.Page, error)
	SetIndexStatus(ctx context.Context, slug string, status model.IndexStatus) error
	IncrementViews(ctx context.Context, slug string) error

	// Affiliate partners
	ListActivePartners(ctx context.Context, category string) ([]model.AffiliatePartner, error)
	UpsertPartners(ctx context.Context, partners []model.AffiliatePartner) (int64, error)

	// Profiles
	EnsureProfile(ctx context.Context, userID string) error
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, profile *model.Profile) error
	AddReputation(ctx context.Context, userID string, delta int) (*model.Profile, error)

	// Comments
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, pageSlug, viewerID string) ([]model.Comment, error)
	ListUserComments(ctx context.Context, userID string, limit int) ([]model.Comment, error)
	DeleteComment(ctx context.Context, id, userID string) error
	ToggleLike(ctx context.Context, commentID, userID string) (bool, error)

	// Ratings
	UpsertRating(ctx context.Context, r *model.Rating) (bool, error)
	RatingSummary(ctx context.Context, pageSlug, viewerID string) (*model.RatingSummary, error)
	ListUserRatings(ctx context.Context, userID string, limit int) ([]model.Rating, error)

	// Referrals
	CreateReferral(ctx context.Context, r *model.Referral) error
	GetReferral(ctx context.Context, id string) (*model.Referral, error)
	ListReferrals(ctx context.Context, referrerID string) ([]model.Referral, error)
	ConvertReferral(ctx context.Context, id string, conv Conversion) error

	// Payouts
	CreatePayout(ctx context.Context, p *model.Payout) error
	GetPayout(ctx context.Context, id string) (*model.Payout, error)
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]model.Payout, error)
	UpdatePayoutStatus(ctx context.Context, id string, change StatusChange) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultPageLimit   = 100
	defaultPayoutLimit = 100
)

func pageLimit(n int) int {
	if n <= 0 {
		return defaultPageLimit
	}
	return n
}

// nullable maps "" to a SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
