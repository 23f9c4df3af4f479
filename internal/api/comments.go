package api

import (
	"context"

	"coursetalk/internal/forum"
	"coursetalk/internal/utils"
)

// CreateCommentRequest carries the inputs of CreateComment. ThreadID makes
// a top-level response; ParentID makes a reply under that comment.
type CreateCommentRequest struct {
	ThreadID         string `json:"thread_id"`
	ParentID         string `json:"parent_id"`
	Body             string `json:"body" binding:"required"`
	CourseID         string `json:"course_id" binding:"required"`
	UserID           string `json:"user_id" binding:"required"`
	Anonymous        bool   `json:"anonymous"`
	AnonymousToPeers bool   `json:"anonymous_to_peers"`
}

// CreateComment inserts the comment (counter and stats effects happen in
// the backend), marks the thread read for the author, and indexes the new
// document.
func (s *Service) CreateComment(ctx context.Context, req CreateCommentRequest) (*forum.Comment, error) {
	author, err := s.backend.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	threadID := req.ThreadID
	if req.ParentID != "" {
		parent, err := s.backend.GetComment(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		threadID = parent.ThreadID
	}
	if threadID == "" {
		return nil, forum.InvalidArgumentf("thread_id or parent_id required")
	}

	id, err := s.backend.InsertComment(ctx, forum.CommentFields{
		ThreadID:         threadID,
		ParentID:         req.ParentID,
		CourseID:         req.CourseID,
		AuthorID:         author.ID,
		AuthorUsername:   author.Username,
		Body:             utils.SanitizeBody(req.Body),
		Anonymous:        req.Anonymous,
		AnonymousToPeers: req.AnonymousToPeers,
	})
	if err != nil {
		return nil, err
	}
	comment, err := s.backend.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.backend.MarkAsRead(ctx, author.ID, threadID); err != nil {
		return nil, err
	}
	s.indexDocument(ctx, commentSearchDocument(comment))
	return comment, nil
}

func (s *Service) GetComment(ctx context.Context, commentID string) (*forum.Comment, error) {
	return s.backend.GetComment(ctx, commentID)
}

// GetThreadComments lists a thread's comments in creation order.
func (s *Service) GetThreadComments(ctx context.Context, threadID string) ([]*forum.Comment, error) {
	if _, err := s.backend.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	return s.backend.GetThreadComments(ctx, threadID)
}

// UpdateComment applies the update and reindexes.
func (s *Service) UpdateComment(ctx context.Context, commentID string, u forum.CommentUpdate) (*forum.Comment, error) {
	if _, err := s.backend.GetComment(ctx, commentID); err != nil {
		return nil, err
	}
	if u.Body != nil {
		body := utils.SanitizeBody(*u.Body)
		u.Body = &body
	}
	if _, err := s.backend.UpdateComment(ctx, commentID, u); err != nil {
		return nil, err
	}
	comment, err := s.backend.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	s.indexDocument(ctx, commentSearchDocument(comment))
	return comment, nil
}

// DeleteComment removes the comment (the backend cascades replies of a
// top-level comment), decrements the author's stats and clears the index.
// The rebuild inside the stats update reconciles the count even when the
// author posted anonymously.
func (s *Service) DeleteComment(ctx context.Context, commentID string) (*forum.Comment, error) {
	comment, err := s.backend.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.backend.DeleteComment(ctx, commentID); err != nil {
		return nil, err
	}

	stat := forum.StatResponses
	if comment.ParentID != "" {
		stat = forum.StatReplies
	}
	if err := s.backend.UpdateStatsForCourse(ctx, comment.AuthorID, comment.CourseID,
		map[string]int{stat: -1}); err != nil {
		return nil, err
	}
	s.unindexDocument(ctx, forum.ContentTypeComment, commentID)
	return comment, nil
}
