package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

type convertRequest struct {
	CommissionTotal decimal.Decimal `json:"commission_total"`
}

func (s *Server) handleConvertReferral(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	ref, err := s.Community.Convert(r.Context(), chi.URLParam(r, "id"), req.CommissionTotal)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.PayoutFilter{
		UserID: q.Get("user_id"),
		Status: model.PayoutStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierr.Write(w, r, apierr.Validation("Ungültiges Limit."))
			return
		}
		filter.Limit = n
	}
	payouts, err := s.Store.ListPayouts(r.Context(), filter)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": payouts})
}

type payoutStatusRequest struct {
	Status        model.PayoutStatus `json:"status"`
	FailureReason string             `json:"failure_reason"`
}

func (s *Server) handlePayoutStatus(w http.ResponseWriter, r *http.Request) {
	var req payoutStatusRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	p, err := s.Community.Advance(r.Context(), chi.URLParam(r, "id"), req.Status, req.FailureReason)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type indexRequest struct {
	IndexStatus model.IndexStatus `json:"index_status"`
}

func (s *Server) handleSetIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	if !req.IndexStatus.Valid() {
		apierr.Write(w, r, apierr.Validation("index_status muss index oder noindex sein."))
		return
	}
	slug := chi.URLParam(r, "slug")
	if err := s.Store.SetIndexStatus(r.Context(), slug, req.IndexStatus); err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"slug": slug, "index_status": string(req.IndexStatus)})
}
