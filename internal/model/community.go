package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reputation ranks, lowest first.
const (
	RankNewcomer  = "Neuling"
	RankFinder    = "Finder"
	RankExpert    = "Experte"
	RankTopFinder = "Top-Finder"
)

// rankThresholds maps the minimum points required for each rank, highest first.
var rankThresholds = []struct {
	points int
	rank   string
}{
	{500, RankTopFinder},
	{200, RankExpert},
	{50, RankFinder},
	{0, RankNewcomer},
}

// RankFor returns the reputation rank for the given point total.
func RankFor(points int) string {
	for _, t := range rankThresholds {
		if points >= t.points {
			return t.rank
		}
	}
	return RankNewcomer
}

// Profile is the public part of a user account.
type Profile struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	ReputationPoints int       `json:"reputation_points"`
	ReputationRank   string    `json:"reputation_rank"`
	CreatedAt        time.Time `json:"created_at"`
}

// Comment is a page comment. Replies are only one level deep.
type Comment struct {
	ID         string     `json:"id"`
	PageSlug   string     `json:"page_slug"`
	UserID     string     `json:"user_id"`
	UserEmail  string     `json:"-"`
	ParentID   string     `json:"parent_id,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	LikesCount int        `json:"likes_count"`
	UserLiked  bool       `json:"user_liked"`
	Username   string     `json:"username,omitempty"`
	Replies    []*Comment `json:"replies,omitempty"`
}

// DisplayName is the username, or the local part of the email when unset.
func (c *Comment) DisplayName() string {
	if c.Username != "" {
		return c.Username
	}
	local, _, _ := strings.Cut(c.UserEmail, "@")
	return local
}

// Rating is one user's star rating of a page.
type Rating struct {
	ID        string    `json:"id"`
	PageSlug  string    `json:"page_slug"`
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingSummary aggregates the ratings of a page for one viewer.
type RatingSummary struct {
	Average   float64 `json:"average"`
	Count     int     `json:"count"`
	UserScore *int    `json:"user_score"`
}

// Referral is a tracked click on a referral link, optionally converted.
type Referral struct {
	ID              string          `json:"id"`
	ReferrerID      string          `json:"referrer_id"`
	VisitorID       string          `json:"visitor_id"`
	PageSlug        string          `json:"page_slug"`
	RefCode         string          `json:"ref_code"`
	ClickedAt       time.Time       `json:"clicked_at"`
	Converted       bool            `json:"converted"`
	ConvertedAt     *time.Time      `json:"converted_at,omitempty"`
	CommissionTotal decimal.Decimal `json:"commission_total"`
	CommissionUser  decimal.Decimal `json:"commission_user"`
}

// PayoutStatus is the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutPending:    {PayoutProcessing, PayoutFailed},
	PayoutProcessing: {PayoutCompleted, PayoutFailed},
}

// CanTransition reports whether a payout may move from s to next.
func (s PayoutStatus) CanTransition(next PayoutStatus) bool {
	for _, allowed := range payoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Open reports whether the payout still holds funds.
func (s PayoutStatus) Open() bool {
	return s == PayoutPending || s == PayoutProcessing
}

// Payout is a request to transfer earned commission to the user.
type Payout struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaypalEmail   string          `json:"paypal_email"`
	Status        PayoutStatus    `json:"status"`
	RequestedAt   time.Time       `json:"requested_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}
