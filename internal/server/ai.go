package server

import (
	"net/http"
	"strings"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/assistant"
	"github.com/findius/findius/internal/model"
)

type queryRequest struct {
	Query string `json:"query"`
}

type generateRequest struct {
	Query   string     `json:"query"`
	Answers []model.QA `json:"answers"`
}

const msgQueryRequired = "Query parameter is required"

// handleValidate always answers 200; validation failures are part of the
// payload, not the status.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Compare.Validate(r.Context(), req.Query))
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		apierr.Write(w, r, apierr.Validation(msgQueryRequired))
		return
	}
	questions, err := s.Compare.Questions(r.Context(), req.Query)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleGeneratePage(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		apierr.Write(w, r, apierr.Validation(msgQueryRequired))
		return
	}
	res, err := s.Compare.Generate(r.Context(), req.Query, req.Answers)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req assistant.ChatRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	resp, err := s.Assistant.Chat(r.Context(), req)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req assistant.EvaluateRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	resp, err := s.Assistant.EvaluateBatch(r.Context(), req)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
