package model

import "time"

// IndexStatus controls whether a generated page is offered to search engines.
type IndexStatus string

const (
	IndexStatusNoIndex IndexStatus = "noindex"
	IndexStatusIndex   IndexStatus = "index"
)

// Valid reports whether s is a known index status.
func (s IndexStatus) Valid() bool {
	return s == IndexStatusNoIndex || s == IndexStatusIndex
}

// QA is one answered clarifying question.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Page is a generated comparison article.
type Page struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Query       string      `json:"query"`
	ChatContext []QA        `json:"chat_context"`
	ContentMDX  string      `json:"content_mdx"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	IndexStatus IndexStatus `json:"index_status"`
	Views       int64       `json:"views"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Question is a multiple-choice clarifying question.
type Question struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Validation is the outcome of classifying a free-text query.
type Validation struct {
	Valid             bool   `json:"valid"`
	Reason            string `json:"reason,omitempty"`
	SuggestedCategory string `json:"suggestedCategory,omitempty"`
}

// AffiliatePartner is a vendor whose referral link earns commission.
type AffiliatePartner struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	AffiliateURL string `json:"affiliate_url" yaml:"affiliate_url"`
	Category     string `json:"category" yaml:"category"`
	Subcategory  string `json:"subcategory,omitempty" yaml:"subcategory"`
	IsActive     bool   `json:"is_active" yaml:"is_active"`
}
