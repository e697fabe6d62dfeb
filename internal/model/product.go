package model

// Intention is the classified purpose of a chat message.
type Intention string

const (
	IntentionProductSearch  Intention = "product_search"
	IntentionCategorySearch Intention = "category_search"
	IntentionConversation   Intention = "general_conversation"
)

// Product is a single item returned by the e-commerce search.
type Product struct {
	Title       string  `json:"title"`
	ImageURL    string  `json:"imageUrl"`
	Price       string  `json:"price"`
	DetailURL   string  `json:"detailUrl"`
	StarRating  float64 `json:"starRating,omitempty"`
	ReviewCount int     `json:"reviewCount,omitempty"`
	Evaluation  *string `json:"evaluation"`
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analysis is the classified intent of a chat message.
type Analysis struct {
	Intention Intention `json:"intention"`
	Language  string    `json:"language"`
	Keyword   string    `json:"keyword,omitempty"`
}

// Marketplace identifies the storefront results are taken from.
type Marketplace struct {
	Domain   string `json:"domain"`
	Language string `json:"language"`
}

// DefaultMarketplace is the German Amazon storefront.
var DefaultMarketplace = Marketplace{Domain: "www.amazon.de", Language: "de_DE"}
