package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/auth"
	"github.com/findius/findius/internal/community"
)

// viewerID is the signed-in user id or "" for anonymous requests.
func viewerID(r *http.Request) string {
	if u, ok := auth.FromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}

// currentUser is only called behind auth.Required.
func currentUser(r *http.Request) *auth.User {
	u, _ := auth.FromContext(r.Context())
	return u
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.Community.Comments(r.Context(), chi.URLParam(r, "slug"), viewerID(r))
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

type commentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id"`
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	u := currentUser(r)
	c, err := s.Community.CreateComment(r.Context(), community.NewComment{
		PageSlug:  chi.URLParam(r, "slug"),
		UserID:    u.ID,
		UserEmail: u.Email,
		ParentID:  req.ParentID,
		Content:   req.Content,
	})
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.Community.DeleteComment(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID); err != nil {
		apierr.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	liked, err := s.Community.ToggleLike(r.Context(), chi.URLParam(r, "id"), currentUser(r).ID)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Community.RatingSummary(r.Context(), chi.URLParam(r, "slug"), viewerID(r))
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type rateRequest struct {
	Score int `json:"score"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	sum, err := s.Community.Rate(r.Context(), chi.URLParam(r, "slug"), currentUser(r).ID, req.Score)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleTrackReferral records a referral click and sets the referral and
// visitor cookies. A visitor id already held in a cookie is reused.
func (s *Server) handleTrackReferral(w http.ResponseWriter, r *http.Request) {
	var click community.Click
	if err := decode(w, r, &click); err != nil {
		apierr.Write(w, r, err)
		return
	}
	if click.VisitorID == "" {
		if c, err := r.Cookie(community.VisitorCookie); err == nil {
			click.VisitorID = c.Value
		}
	}
	res, err := s.Community.Track(r.Context(), click)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	secure := strings.HasPrefix(s.cfg.PublicURL, "https://")
	for name, value := range map[string]string{
		community.RefCookie:     res.RefCode,
		community.VisitorCookie: res.VisitorID,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   int(community.RefCookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePublicProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.Community.Profile(r.Context(), strings.ToLower(chi.URLParam(r, "username")))
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.Community.Dashboard(r.Context(), currentUser(r).ID)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd community.ProfileUpdate
	if err := decode(w, r, &upd); err != nil {
		apierr.Write(w, r, err)
		return
	}
	p, err := s.Community.UpdateProfile(r.Context(), currentUser(r).ID, upd)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type payoutRequest struct {
	PaypalEmail string `json:"paypal_email"`
}

func (s *Server) handleRequestPayout(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := decode(w, r, &req); err != nil {
		apierr.Write(w, r, err)
		return
	}
	p, err := s.Community.RequestPayout(r.Context(), currentUser(r).ID, req.PaypalEmail)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
