package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/cost"
	"github.com/findius/findius/internal/mdx"
	"github.com/findius/findius/internal/model"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Database string            `json:"database"`
	Breakers map[string]string `json:"breakers,omitempty"`
	Costs    []cost.Usage      `json:"costs,omitempty"`
	TotalUSD float64           `json:"total_usd"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if err := s.Store.Ping(ctx); err != nil {
		zap.L().Warn("health: database ping failed", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if s.Breakers != nil {
		resp.Breakers = s.Breakers.States()
	}
	if s.Costs != nil {
		resp.Costs = s.Costs.Snapshot()
		resp.TotalUSD = s.Costs.Total()
	}
	writeJSON(w, status, resp)
}

type pageResponse struct {
	*model.Page
	Document *mdx.Document `json:"document"`
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	page, err := s.Store.GetPage(r.Context(), slug)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	doc, err := mdx.Render(page.ContentMDX)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	s.background("increment views", viewTimeout, func(ctx context.Context) error {
		return s.Store.IncrementViews(ctx, slug)
	})

	if page.IndexStatus != model.IndexStatusIndex {
		w.Header().Set("X-Robots-Tag", "noindex")
	}
	writeJSON(w, http.StatusOK, pageResponse{Page: page, Document: doc})
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.Sitemap.WriteSitemap(r.Context(), &buf); err != nil {
		apierr.Write(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.Sitemap.WriteRobots(w); err != nil {
		zap.L().Error("robots: write failed", zap.Error(err))
	}
}
