package compare

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/llm"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "compare.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// scripted answers every request with text and records what it saw.
type scripted struct {
	text  string
	err   error
	calls []llm.Request
}

func (s *scripted) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.text}, nil
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("too short skips the model", func(t *testing.T) {
		fake := &scripted{}
		got := New(fake, nil).Validate(ctx, "  a ")
		assert.Equal(t, model.Validation{Valid: false, Reason: MsgEmptyQuery}, got)
		assert.Empty(t, fake.calls)
	})

	t.Run("rejected by model", func(t *testing.T) {
		fake := &scripted{text: `{"valid": false, "reason": "Kein Vergleich"}`}
		got := New(fake, nil).Validate(ctx, "Warum ist der Himmel blau")
		assert.False(t, got.Valid)
		assert.Equal(t, "Kein Vergleich", got.Reason)

		require.Len(t, fake.calls, 1)
		req := fake.calls[0]
		assert.Equal(t, llm.Fast, req.Tier)
		assert.Zero(t, req.Temperature)
		assert.Equal(t, 150, req.MaxTokens)
		assert.True(t, req.JSON)
		assert.Equal(t, "Warum ist der Himmel blau", req.Messages[0].Content)
	})

	t.Run("accepted with category", func(t *testing.T) {
		fake := &scripted{text: `{"valid": true, "suggestedCategory": "Finanzen"}`}
		got := New(fake, nil).Validate(ctx, "ETF Depot")
		assert.Equal(t, model.Validation{Valid: true, SuggestedCategory: "Finanzen"}, got)
	})

	t.Run("fails open", func(t *testing.T) {
		for _, fake := range []*scripted{
			{err: &llm.ProviderError{Provider: "openai", Err: errors.New("down")}},
			{text: ""},
			{text: "kein json"},
			{text: `{"reason": "egal"}`},
		} {
			got := New(fake, nil).Validate(ctx, "Stromanbieter")
			assert.True(t, got.Valid)
		}
	})
}

func TestQuestions(t *testing.T) {
	ctx := context.Background()

	fake := &scripted{text: `{"questions": [
		{"text": "Wie viel möchtest du investieren?", "options": ["Unter 50 €", "50-200 €", "Über 200 €"]},
		{"text": "", "options": ["a", "b"]},
		{"text": "Nur eine Option?", "options": ["ja"]},
		{"text": "Was ist dir wichtig?", "options": ["Gebühren", "App"]},
		{"text": "Wie oft handelst du?", "options": ["Selten", "Oft"]},
		{"text": "Noch eine?", "options": ["x", "y"]}
	]}`}

	qs, err := New(fake, nil).Questions(ctx, "ETF Depot")
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, "Wie viel möchtest du investieren?", qs[0].Text)
	assert.Equal(t, "Was ist dir wichtig?", qs[1].Text)
	assert.Equal(t, "Wie oft handelst du?", qs[2].Text)

	req := fake.calls[0]
	assert.Equal(t, llm.Quality, req.Tier)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Equal(t, "Thema: ETF Depot", req.Messages[0].Content)
}

func TestQuestions_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(&scripted{}, nil).Questions(ctx, "   ")
	assert.Equal(t, 400, apierr.From(err).Status)

	_, err = New(&scripted{text: ""}, nil).Questions(ctx, "Depot")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.Equal(t, 503, apierr.From(err).Status)

	_, err = New(&scripted{text: `{"questions": []}`}, nil).Questions(ctx, "Depot")
	assert.Equal(t, apierr.CodeQuestions, apierr.From(err).Code)

	_, err = New(&scripted{err: &llm.ProviderError{Provider: "openai", Err: errors.New("x")}}, nil).Questions(ctx, "Depot")
	assert.Equal(t, apierr.CodeQuestions, apierr.From(err).Code)
}

const generatedJSON = `{
	"title": "Die besten ETF Depots",
	"description": "Depots im Vergleich",
	"category": "Finanzen",
	"content_mdx": "## Vergleich\n\n<ComparisonTable items=[{name: \"A\"}] />"
}`

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	_, err := st.UpsertPartners(ctx, []model.AffiliatePartner{
		{ID: "p1", Name: "Trade Republic", AffiliateURL: "https://tr.example/ref", Category: "depot", IsActive: true},
		{ID: "p2", Name: "Check24", AffiliateURL: "https://c24.example/ref", Category: "strom", IsActive: true},
	})
	require.NoError(t, err)

	fake := &scripted{text: generatedJSON}
	svc := New(fake, st)
	answers := []model.QA{{Question: "Budget?", Answer: "100 €"}}

	res, err := svc.Generate(ctx, "Bestes ETF Depot für Anfänger", answers)
	require.NoError(t, err)
	assert.Equal(t, "bestes-etf-depot-fuer-anfaenger", res.Slug)
	assert.True(t, res.Created)

	require.Len(t, fake.calls, 1)
	prompt := fake.calls[0].Messages[0].Content
	assert.True(t, strings.HasPrefix(prompt, `Erstelle eine Vergleichsseite zum Thema: "Bestes ETF Depot für Anfänger"`))
	assert.Contains(t, prompt, "\n\nNutzerpräferenzen:\n- Budget?: 100 €")
	assert.Contains(t, prompt, "- Trade Republic: https://tr.example/ref")
	assert.NotContains(t, prompt, "Check24")
	assert.Equal(t, llm.Quality, fake.calls[0].Tier)

	page, err := st.GetPage(ctx, res.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Die besten ETF Depots", page.Title)
	assert.Equal(t, "Finanzen", page.Category)
	assert.Equal(t, model.IndexStatusNoIndex, page.IndexStatus)
	assert.Equal(t, answers, page.ChatContext)
	assert.Contains(t, page.ContentMDX, "items={[{name: \"A\"}]}")

	// Second call returns the stored page without another model call.
	res, err = svc.Generate(ctx, "Bestes ETF-Depot für Anfänger!", nil)
	require.NoError(t, err)
	assert.Equal(t, "bestes-etf-depot-fuer-anfaenger", res.Slug)
	assert.False(t, res.Created)
	assert.Len(t, fake.calls, 1)
}

func TestGenerate_FallsBackToDetectedCategory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fake := &scripted{text: `{"title": "Strom", "content_mdx": "Text"}`}

	res, err := New(fake, st).Generate(ctx, "Günstiger Stromanbieter", nil)
	require.NoError(t, err)

	page, err := st.GetPage(ctx, res.Slug)
	require.NoError(t, err)
	assert.Equal(t, "strom", page.Category)
	assert.NotContains(t, fake.calls[0].Messages[0].Content, "Nutzerpräferenzen")
}

func TestGenerate_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(&scripted{}, newTestStore(t)).Generate(ctx, "!!!", nil)
	assert.Equal(t, 400, apierr.From(err).Status)

	_, err = New(&scripted{text: `{"title": "Nur Titel"}`}, newTestStore(t)).Generate(ctx, "Depot", nil)
	assert.Equal(t, apierr.CodeInvalidFormat, apierr.From(err).Code)

	_, err = New(&scripted{text: "kaputt"}, newTestStore(t)).Generate(ctx, "Depot", nil)
	assert.ErrorIs(t, err, llm.ErrInvalidJSON)

	_, err = New(&scripted{err: &llm.ProviderError{Provider: "openai", Err: errors.New("x")}}, newTestStore(t)).Generate(ctx, "Depot", nil)
	e := apierr.From(err)
	assert.Equal(t, 503, e.Status)
	assert.Equal(t, apierr.CodeGeneration, e.Code)
}

// racingStore reports the page as missing but loses the insert race.
type racingStore struct {
	store.Store
}

func (racingStore) PageExists(context.Context, string) (bool, error) { return false, nil }

func (racingStore) CreatePage(context.Context, *model.Page) error {
	return eris.Wrap(store.ErrConflict, "sqlite: page exists")
}

func TestGenerate_ConcurrentInsertReturnsSlug(t *testing.T) {
	st := racingStore{Store: newTestStore(t)}
	res, err := New(&scripted{text: generatedJSON}, st).Generate(context.Background(), "Kreditkarte", nil)
	require.NoError(t, err)
	assert.Equal(t, "kreditkarte", res.Slug)
	assert.False(t, res.Created)
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Bestes ETF Depot", "bestes-etf-depot"},
		{"Größte Übersicht für Ärzte", "groesste-uebersicht-fuer-aerzte"},
		{"Café & Crème brûlée", "cafe-creme-brulee"},
		{"  --Hallo   Welt--  ", "hallo-welt"},
		{"DSL 100 Mbit/s", "dsl-100-mbit-s"},
		{"!!!", ""},
		{strings.Repeat("abc ", 30), "abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc-abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "in=%q", tt.in)
	}
}

func TestSlugify_MaxLength(t *testing.T) {
	slug := Slugify(strings.Repeat("a", 79) + " b")
	assert.Equal(t, strings.Repeat("a", 79), slug)
	assert.LessOrEqual(t, len(Slugify(strings.Repeat("xyz", 100))), MaxSlugLen)
}
