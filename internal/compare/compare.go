// Package compare turns a free-text comparison query into a persisted MDX
// page: validation, clarifying questions and page generation.
package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/affiliate"
	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/llm"
	"github.com/findius/findius/internal/mdx"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

// MsgEmptyQuery is returned for blank or too short queries.
const MsgEmptyQuery = "Bitte gib eine Suchanfrage ein."

const (
	maxQuestions   = 3
	minOptions     = 2
	validateTokens = 150
)

// Service generates comparison pages.
type Service struct {
	llm   llm.Client
	store store.Store
}

// New creates a Service.
func New(client llm.Client, st store.Store) *Service {
	return &Service{llm: client, store: st}
}

// Validate classifies a query. It fails open: any model or decoding error
// accepts the query.
func (s *Service) Validate(ctx context.Context, query string) model.Validation {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return model.Validation{Valid: false, Reason: MsgEmptyQuery}
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Operation:   "validate",
		Tier:        llm.Fast,
		System:      validatePrompt,
		Messages:    []llm.Message{{Role: "user", Content: query}},
		Temperature: 0,
		MaxTokens:   validateTokens,
		JSON:        true,
	})
	if err != nil {
		zap.L().Warn("compare: validation failed, accepting query", zap.String("query", query), zap.Error(err))
		return model.Validation{Valid: true}
	}

	var out struct {
		Valid             *bool  `json:"valid"`
		Reason            string `json:"reason"`
		SuggestedCategory string `json:"suggestedCategory"`
	}
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		zap.L().Warn("compare: validation answer unusable, accepting query", zap.String("query", query), zap.Error(err))
		return model.Validation{Valid: true}
	}
	if out.Valid == nil || *out.Valid {
		return model.Validation{Valid: true, SuggestedCategory: out.SuggestedCategory}
	}
	return model.Validation{Valid: false, Reason: out.Reason}
}

// Questions asks the model for clarifying multiple-choice questions.
func (s *Service) Questions(ctx context.Context, query string) ([]model.Question, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierr.Validation(MsgEmptyQuery)
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Operation:   "questions",
		Tier:        llm.Quality,
		System:      questionsPrompt,
		Messages:    []llm.Message{{Role: "user", Content: "Thema: " + query}},
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		return nil, apierr.AIService(apierr.CodeQuestions, eris.Wrap(err, "compare: questions"))
	}

	var out struct {
		Questions []model.Question `json:"questions"`
	}
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		return nil, eris.Wrap(err, "compare: decode questions")
	}

	questions := make([]model.Question, 0, maxQuestions)
	for _, q := range out.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" || len(q.Options) < minOptions {
			continue
		}
		questions = append(questions, q)
		if len(questions) == maxQuestions {
			break
		}
	}
	if len(questions) == 0 {
		return nil, apierr.AIService(apierr.CodeQuestions, eris.Wrap(llm.ErrEmptyResponse, "compare: no usable questions"))
	}
	return questions, nil
}

// Result is the outcome of Generate.
type Result struct {
	Slug string `json:"slug"`
	// Created is false when the page already existed.
	Created bool `json:"-"`
}

type generatedPage struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ContentMDX  string `json:"content_mdx"`
}

// Generate writes and stores a comparison page for query. An existing page
// with the same slug is returned without calling the model.
func (s *Service) Generate(ctx context.Context, query string, answers []model.QA) (*Result, error) {
	query = strings.TrimSpace(query)
	slug := Slugify(query)
	if slug == "" {
		return nil, apierr.Validation(MsgEmptyQuery)
	}

	exists, err := s.store.PageExists(ctx, slug)
	if err != nil {
		return nil, eris.Wrapf(err, "compare: check page %s", slug)
	}
	if exists {
		return &Result{Slug: slug}, nil
	}

	start := time.Now()
	category := affiliate.DetectCategory(query)
	var partners []model.AffiliatePartner
	if category != "" {
		partners, err = s.store.ListActivePartners(ctx, category)
		if err != nil {
			return nil, eris.Wrapf(err, "compare: load partners for %s", category)
		}
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Operation:   "generate_page",
		Tier:        llm.Quality,
		System:      pagePrompt,
		Messages:    []llm.Message{{Role: "user", Content: pageRequest(query, answers, partners)}},
		Temperature: 0.7,
		JSON:        true,
	})
	if err != nil {
		return nil, apierr.AIService(apierr.CodeGeneration, eris.Wrapf(err, "compare: generate %s", slug))
	}

	var out generatedPage
	if err := llm.DecodeJSON(resp.Text, &out); err != nil {
		return nil, eris.Wrapf(err, "compare: decode page %s", slug)
	}
	if strings.TrimSpace(out.ContentMDX) == "" || strings.TrimSpace(out.Title) == "" {
		return nil, apierr.AIService(apierr.CodeInvalidFormat,
			eris.Errorf("compare: page %s is missing title or content", slug))
	}
	if out.Category == "" {
		out.Category = category
	}

	page := &model.Page{
		Slug:        slug,
		Query:       query,
		ChatContext: answers,
		ContentMDX:  mdx.Sanitize(out.ContentMDX),
		Title:       strings.TrimSpace(out.Title),
		Description: strings.TrimSpace(out.Description),
		Category:    out.Category,
		IndexStatus: model.IndexStatusNoIndex,
	}
	if err := s.store.CreatePage(ctx, page); err != nil {
		if errors.Is(err, store.ErrConflict) {
			zap.L().Info("compare: page created concurrently", zap.String("slug", slug))
			return &Result{Slug: slug}, nil
		}
		return nil, eris.Wrapf(err, "compare: save page %s", slug)
	}

	zap.L().Info("compare: page generated",
		zap.String("slug", slug),
		zap.String("category", page.Category),
		zap.Int("partners", len(partners)),
		zap.Strings("unknown_components", mdx.Unknown(page.ContentMDX)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Slug: slug, Created: true}, nil
}

// pageRequest builds the user turn for page generation.
func pageRequest(query string, answers []model.QA, partners []model.AffiliatePartner) string {
	var prefs strings.Builder
	if len(answers) > 0 {
		prefs.WriteString("\n\nNutzerpräferenzen:")
		for _, a := range answers {
			fmt.Fprintf(&prefs, "\n- %s: %s", a.Question, a.Answer)
		}
	}
	return fmt.Sprintf("Erstelle eine Vergleichsseite zum Thema: \"%s\"%s%s", query, prefs.String(), affiliate.BuildContext(partners))
}
