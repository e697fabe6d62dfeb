package creators

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findius/findius/internal/resilience"
)

type fakeAPI struct {
	tokenHits  atomic.Int32
	searchHits atomic.Int32
	expiresIn  int
	status     []int // per search call, 200 when exhausted
	items      []map[string]any
	lastBody   map[string]any
	lastHeader http.Header
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cred-id", user)
		assert.Equal(t, "cred-secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "creatorsapi/default", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"access_token": "tok-123",
			"token_type":   "bearer",
			"expires_in":   f.expiresIn,
		})
	})
	mux.HandleFunc("/catalog/v1/searchItems", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.searchHits.Add(1)) - 1
		f.lastHeader = r.Header.Clone()
		f.lastBody = nil
		json.NewDecoder(r.Body).Decode(&f.lastBody) //nolint:errcheck

		if n < len(f.status) && f.status[n] != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status[n])
			w.Write([]byte(`{"message":"Too many requests"}`)) //nolint:errcheck
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"searchResult": map[string]any{"items": f.items},
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testClient(ts *httptest.Server, mutate func(*Config)) *Client {
	cfg := Config{
		CredentialID:     "cred-id",
		CredentialSecret: "cred-secret",
		PartnerTag:       "findius-21",
		APIVersion:       "v2.2",
		TokenURL:         ts.URL + "/oauth2/token",
		SearchURL:        ts.URL + "/catalog/v1/searchItems",
		MinInterval:      time.Millisecond,
		Retry:            resilience.RetryPolicy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond, Service: "creators"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func TestSearchProducts_MapsItems(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600, items: []map[string]any{
		{
			"detailPageURL": "https://www.amazon.de/dp/B0001?tag=findius-21",
			"itemInfo":      map[string]any{"title": map[string]any{"displayValue": "Sony WH-1000XM5"}},
			"images":        map[string]any{"primary": map[string]any{"large": map[string]any{"url": "https://m.media-amazon.com/x.jpg"}}},
			"customerReviews": map[string]any{
				"count":      1234,
				"starRating": map[string]any{"value": 4.6},
			},
		},
		{
			"customerReviews": map[string]any{"starRating": map[string]any{"value": "3.5"}},
		},
	}}
	ts := api.server(t)
	client := testClient(ts, nil)

	products, err := client.SearchProducts(context.Background(), "kopfhörer")
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "Sony WH-1000XM5", products[0].Title)
	assert.Equal(t, "https://www.amazon.de/dp/B0001?tag=findius-21", products[0].DetailURL)
	assert.Equal(t, "https://m.media-amazon.com/x.jpg", products[0].ImageURL)
	assert.Equal(t, "Preis nicht verfügbar", products[0].Price)
	assert.InDelta(t, 4.6, products[0].StarRating, 1e-9)
	assert.Equal(t, 1234, products[0].ReviewCount)
	assert.Nil(t, products[0].Evaluation)

	assert.Equal(t, "Kein Titel", products[1].Title)
	assert.Equal(t, "#", products[1].DetailURL)
	assert.Empty(t, products[1].ImageURL)
	assert.InDelta(t, 3.5, products[1].StarRating, 1e-9)

	assert.Equal(t, "Bearer tok-123, Version 2.2", api.lastHeader.Get("Authorization"))
	assert.Equal(t, "www.amazon.de", api.lastHeader.Get("x-marketplace"))
	assert.Equal(t, "kopfhörer", api.lastBody["keywords"])
	assert.Equal(t, "findius-21", api.lastBody["partnerTag"])
	assert.Equal(t, "Associates", api.lastBody["partnerType"])
	assert.Equal(t, "All", api.lastBody["searchIndex"])
	assert.InDelta(t, 10, api.lastBody["itemCount"], 0)
	assert.Equal(t, "Available", api.lastBody["availability"])
	assert.Equal(t, "New", api.lastBody["condition"])
	assert.Len(t, api.lastBody["resources"], 6)
}

func TestSearchProducts_ReusesToken(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600}
	client := testClient(api.server(t), nil)

	for i := 0; i < 3; i++ {
		_, err := client.SearchProducts(context.Background(), "laptop")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), api.tokenHits.Load())
	assert.Equal(t, int32(3), api.searchHits.Load())
}

func TestSearchProducts_RefreshesTokenInsideLeeway(t *testing.T) {
	api := &fakeAPI{expiresIn: 30}
	client := testClient(api.server(t), nil)

	for i := 0; i < 2; i++ {
		_, err := client.SearchProducts(context.Background(), "laptop")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), api.tokenHits.Load())
}

func TestSearchProducts_EmptyResult(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600}
	client := testClient(api.server(t), nil)

	products, err := client.SearchProducts(context.Background(), "xyz")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestSearchProducts_MissingCredentials(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600}
	client := testClient(api.server(t), func(c *Config) {
		c.CredentialSecret = ""
		c.PartnerTag = ""
	})

	_, err := client.SearchProducts(context.Background(), "laptop")
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeMissingCredentials, ce.Code)
	assert.Contains(t, ce.Message, "Credential Secret, Partner Tag")
	assert.Equal(t, int32(0), api.tokenHits.Load())
}

func TestSearchProducts_AuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client"}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client := testClient(ts, nil)
	_, err := client.SearchProducts(context.Background(), "laptop")
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeAuth, ce.Code)
}

func TestSearchProducts_RetriesTransientStatus(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600, status: []int{http.StatusServiceUnavailable}}
	client := testClient(api.server(t), nil)

	_, err := client.SearchProducts(context.Background(), "laptop")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.searchHits.Load())
}

func TestSearchProducts_RateLimitCode(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600, status: []int{429, 429, 429}}
	client := testClient(api.server(t), nil)

	_, err := client.SearchProducts(context.Background(), "laptop")
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeRateLimit, ce.Code)
	assert.Equal(t, http.StatusTooManyRequests, ce.Status)
	assert.Contains(t, ce.Message, "Too many requests")
	assert.Equal(t, int32(3), api.searchHits.Load())
}

func TestSearchProducts_PermanentStatusNotRetried(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600, status: []int{http.StatusForbidden}}
	client := testClient(api.server(t), nil)

	_, err := client.SearchProducts(context.Background(), "laptop")
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeAPI, ce.Code)
	assert.Equal(t, int32(1), api.searchHits.Load())
}

func TestSearchProducts_SpacesRequests(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600}
	client := testClient(api.server(t), func(c *Config) { c.MinInterval = 80 * time.Millisecond })

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.SearchProducts(context.Background(), "laptop")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestSearchProducts_BreakerOpens(t *testing.T) {
	api := &fakeAPI{expiresIn: 3600, status: []int{403, 403, 403}}
	breaker := resilience.NewBreaker("creators", resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	client := testClient(api.server(t), func(c *Config) { c.Breaker = breaker })

	_, err := client.SearchProducts(context.Background(), "laptop")
	require.Error(t, err)

	_, err = client.SearchProducts(context.Background(), "laptop")
	assert.ErrorIs(t, err, resilience.ErrOpen)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeAPI, ce.Code)
	assert.Equal(t, int32(1), api.searchHits.Load())
}

func TestParseRating(t *testing.T) {
	assert.InDelta(t, 4.5, parseRating(json.RawMessage(`4.5`)), 1e-9)
	assert.InDelta(t, 4.5, parseRating(json.RawMessage(`"4.5"`)), 1e-9)
	assert.Zero(t, parseRating(nil))
	assert.Zero(t, parseRating(json.RawMessage(`null`)))
	assert.Zero(t, parseRating(json.RawMessage(`"n/a"`)))
}

func TestError_Message(t *testing.T) {
	e := &Error{Code: CodeRateLimit, Message: "slow down"}
	assert.Equal(t, "creators: RATE_LIMIT: slow down", e.Error())
}
