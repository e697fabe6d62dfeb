package community

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/model"
	"github.com/findius/findius/internal/store"
)

// MaxCommentLen is the longest comment accepted, in characters.
const MaxCommentLen = 2000

// NewComment is a comment or reply as submitted by a signed-in user.
type NewComment struct {
	PageSlug  string
	UserID    string
	UserEmail string
	ParentID  string
	Content   string
}

// CreateComment stores a comment. A reply to a reply is attached to the
// top-level comment so threads stay one level deep.
func (s *Service) CreateComment(ctx context.Context, in NewComment) (*model.Comment, error) {
	content := strings.TrimSpace(in.Content)
	switch {
	case content == "":
		return nil, apierr.Validation("Bitte gib einen Kommentar ein.")
	case utf8.RuneCountInString(content) > MaxCommentLen:
		return nil, apierr.Validation("Kommentare dürfen höchstens 2000 Zeichen lang sein.")
	}
	if err := s.requirePage(ctx, in.PageSlug); err != nil {
		return nil, err
	}

	parentID := in.ParentID
	if parentID != "" {
		parent, err := s.store.GetComment(ctx, parentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, errCommentNotFound
			}
			return nil, err
		}
		if parent.PageSlug != in.PageSlug {
			return nil, apierr.Validation("Die Antwort gehört zu einer anderen Seite.")
		}
		if parent.ParentID != "" {
			parentID = parent.ParentID
		}
	}

	if err := s.store.EnsureProfile(ctx, in.UserID); err != nil {
		return nil, err
	}
	c := &model.Comment{
		PageSlug:  in.PageSlug,
		UserID:    in.UserID,
		UserEmail: in.UserEmail,
		ParentID:  parentID,
		Content:   content,
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, eris.Wrap(err, "community: create comment")
	}

	if parentID == "" {
		s.award(ctx, in.UserID, PointsComment, "comment")
	} else {
		s.award(ctx, in.UserID, PointsReply, "reply")
	}
	created, err := s.store.GetComment(ctx, c.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "community: reload comment %s", c.ID)
	}
	created.Username = created.DisplayName()
	return created, nil
}

// Comments returns the thread of a page: top-level comments newest first,
// each with its replies oldest first. viewerID may be empty.
func (s *Service) Comments(ctx context.Context, pageSlug, viewerID string) ([]*model.Comment, error) {
	flat, err := s.store.ListComments(ctx, pageSlug, viewerID)
	if err != nil {
		return nil, eris.Wrapf(err, "community: list comments %s", pageSlug)
	}
	return buildThreads(flat), nil
}

// buildThreads nests replies under their root.
func buildThreads(flat []model.Comment) []*model.Comment {
	byID := make(map[string]*model.Comment, len(flat))
	for i := range flat {
		c := &flat[i]
		c.Username = c.DisplayName()
		byID[c.ID] = c
	}

	roots := make([]*model.Comment, 0, len(flat))
	for i := range flat {
		c := &flat[i]
		if parent, ok := byID[c.ParentID]; ok && c.ParentID != "" {
			parent.Replies = append(parent.Replies, c)
			continue
		}
		roots = append(roots, c)
	}

	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})
	for _, r := range roots {
		sort.SliceStable(r.Replies, func(i, j int) bool {
			return r.Replies[i].CreatedAt.Before(r.Replies[j].CreatedAt)
		})
	}
	return roots
}

// DeleteComment removes a comment written by userID, with its replies.
func (s *Service) DeleteComment(ctx context.Context, id, userID string) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errCommentNotFound
		}
		return err
	}
	if c.UserID != userID {
		return apierr.Forbidden("Du kannst nur deine eigenen Kommentare löschen.")
	}
	return eris.Wrapf(s.store.DeleteComment(ctx, id, userID), "community: delete comment %s", id)
}

// ToggleLike likes or unlikes a comment and reports the new state. The
// author's reputation follows the like, except for likes on one's own
// comments.
func (s *Service) ToggleLike(ctx context.Context, commentID, userID string) (bool, error) {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, errCommentNotFound
		}
		return false, err
	}

	liked, err := s.store.ToggleLike(ctx, commentID, userID)
	if err != nil {
		return false, eris.Wrapf(err, "community: toggle like %s", commentID)
	}
	if c.UserID != userID {
		if liked {
			s.award(ctx, c.UserID, PointsLikeReceived, "like")
		} else {
			s.award(ctx, c.UserID, -PointsLikeReceived, "unlike")
		}
	}
	return liked, nil
}
