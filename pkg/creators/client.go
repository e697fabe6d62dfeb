// Package creators is a client for the Amazon Creators API product search.
package creators

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/resilience"
)

const (
	scope         = "creatorsapi/default"
	tokenLeeway   = 60 * time.Second
	httpTimeout   = 10 * time.Second
	itemCount     = 10
	noTitle       = "Kein Titel"
	noPrice       = "Preis nicht verfügbar"
	noDetailURL   = "#"
	maxErrorBytes = 4 << 10
)

var searchResources = []string{
	"images.primary.large",
	"itemInfo.title",
	"itemInfo.features",
	"itemInfo.productInfo",
	"customerReviews.count",
	"customerReviews.starRating",
}

// Config holds credentials and endpoints for the Creators API.
type Config struct {
	CredentialID     string
	CredentialSecret string
	PartnerTag       string
	APIVersion       string
	TokenURL         string
	SearchURL        string
	Marketplace      string
	// MinInterval is the minimum spacing between search requests.
	MinInterval time.Duration
	HTTPClient  *http.Client
	Breaker     *resilience.Breaker
	Retry       resilience.RetryPolicy
}

// Client searches the product catalog. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	tokens  oauth2.TokenSource
	limiter *rate.Limiter
}

// New creates a Client. Missing credentials are reported on the first
// search, not here, so the server can start without them.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if cfg.Marketplace == "" {
		cfg.Marketplace = model.DefaultMarketplace.Domain
	}
	if cfg.Retry.Service == "" {
		cfg.Retry = resilience.DefaultRetryPolicy("creators")
	}
	cfg.APIVersion = strings.TrimPrefix(cfg.APIVersion, "v")

	cc := &clientcredentials.Config{
		ClientID:     cfg.CredentialID,
		ClientSecret: cfg.CredentialSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, cfg.HTTPClient)
	fetch := tokenSourceFunc(func() (*oauth2.Token, error) {
		tok, err := cc.Token(tokenCtx)
		if err != nil {
			return nil, err
		}
		zap.L().Info("creators: oauth token acquired", zap.Time("expiry", tok.Expiry))
		return tok, nil
	})

	return &Client{
		cfg:     cfg,
		http:    cfg.HTTPClient,
		tokens:  oauth2.ReuseTokenSourceWithExpiry(nil, fetch, tokenLeeway),
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
	}
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

// Marketplace returns the storefront this client searches.
func (c *Client) Marketplace() string { return c.cfg.Marketplace }

// SearchProducts runs a keyword search and maps the items to products.
func (c *Client) SearchProducts(ctx context.Context, keywords string) ([]model.Product, error) {
	if missing := c.missingCredentials(); len(missing) > 0 {
		return nil, &Error{
			Code:    CodeMissingCredentials,
			Message: "missing credentials: " + strings.Join(missing, ", "),
		}
	}

	search := func(ctx context.Context) ([]model.Product, error) {
		return resilience.Retry(ctx, c.cfg.Retry, func(ctx context.Context) ([]model.Product, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &Error{Code: CodeAPI, Message: "rate limiter", Err: err}
			}
			return c.search(ctx, keywords)
		})
	}

	var (
		products []model.Product
		err      error
	)
	if c.cfg.Breaker != nil {
		products, err = resilience.Call(ctx, c.cfg.Breaker, search)
	} else {
		products, err = search(ctx)
	}
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, &Error{Code: CodeAPI, Message: "search failed", Err: err}
	}
	return products, nil
}

func (c *Client) missingCredentials() []string {
	var missing []string
	if c.cfg.CredentialID == "" {
		missing = append(missing, "Credential ID")
	}
	if c.cfg.CredentialSecret == "" {
		missing = append(missing, "Credential Secret")
	}
	if c.cfg.PartnerTag == "" {
		missing = append(missing, "Partner Tag")
	}
	return missing
}

type searchRequest struct {
	Keywords     string   `json:"keywords"`
	Resources    []string `json:"resources"`
	PartnerTag   string   `json:"partnerTag"`
	PartnerType  string   `json:"partnerType"`
	Marketplace  string   `json:"marketplace"`
	SearchIndex  string   `json:"searchIndex"`
	ItemCount    int      `json:"itemCount"`
	Availability string   `json:"availability"`
	Condition    string   `json:"condition"`
}

type searchResponse struct {
	SearchResult *struct {
		Items []item `json:"items"`
	} `json:"searchResult"`
}

type item struct {
	DetailPageURL string `json:"detailPageURL"`
	ItemInfo      struct {
		Title struct {
			DisplayValue string `json:"displayValue"`
		} `json:"title"`
	} `json:"itemInfo"`
	Images struct {
		Primary struct {
			Large struct {
				URL string `json:"url"`
			} `json:"large"`
		} `json:"primary"`
	} `json:"images"`
	CustomerReviews struct {
		Count      int `json:"count"`
		StarRating struct {
			Value json.RawMessage `json:"value"`
		} `json:"starRating"`
	} `json:"customerReviews"`
}

func (c *Client) search(ctx context.Context, keywords string) ([]model.Product, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, &Error{Code: CodeAuth, Message: "failed to authenticate with Amazon Creators API", Err: err}
	}

	body, err := json.Marshal(searchRequest{
		Keywords:     keywords,
		Resources:    searchResources,
		PartnerTag:   c.cfg.PartnerTag,
		PartnerType:  "Associates",
		Marketplace:  c.cfg.Marketplace,
		SearchIndex:  "All",
		ItemCount:    itemCount,
		Availability: "Available",
		Condition:    "New",
	})
	if err != nil {
		return nil, &Error{Code: CodeAPI, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: CodeAPI, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s, Version %s", tok.AccessToken, c.cfg.APIVersion))
	req.Header.Set("x-marketplace", c.cfg.Marketplace)

	resp, err := c.http.Do(req)
	if err != nil {
		e := &Error{Code: CodeAPI, Message: "failed to search Amazon products", Err: err}
		if resilience.IsTransient(err) {
			return nil, resilience.Transient(e, 0)
		}
		return nil, e
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		e := &Error{
			Code:    CodeAPI,
			Status:  resp.StatusCode,
			Message: "failed to search Amazon products: " + apiMessage(msg, resp.Status),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			e.Code = CodeRateLimit
		}
		zap.L().Warn("creators: search failed",
			zap.Int("status", resp.StatusCode),
			zap.String("keywords", keywords),
		)
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.Transient(e, resp.StatusCode)
		}
		return nil, e
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &Error{Code: CodeAPI, Message: "decode response", Err: err}
	}
	if sr.SearchResult == nil {
		return []model.Product{}, nil
	}

	products := make([]model.Product, 0, len(sr.SearchResult.Items))
	for _, it := range sr.SearchResult.Items {
		products = append(products, toProduct(it))
	}
	return products, nil
}

func toProduct(it item) model.Product {
	p := model.Product{
		Title:       it.ItemInfo.Title.DisplayValue,
		DetailURL:   it.DetailPageURL,
		ImageURL:    it.Images.Primary.Large.URL,
		Price:       noPrice,
		StarRating:  parseRating(it.CustomerReviews.StarRating.Value),
		ReviewCount: it.CustomerReviews.Count,
	}
	if p.Title == "" {
		p.Title = noTitle
	}
	if p.DetailURL == "" {
		p.DetailURL = noDetailURL
	}
	return p
}

// parseRating accepts the star rating as a JSON number or string.
func parseRating(raw json.RawMessage) float64 {
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func apiMessage(body []byte, status string) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &m) == nil && m.Message != "" {
		return m.Message
	}
	return status
}
