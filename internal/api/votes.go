package api

import (
	"context"

	"coursetalk/internal/forum"
)

func (s *Service) vote(ctx context.Context, contentType, contentID, userID, value string, removal bool) error {
	if _, err := s.backend.GetUser(ctx, userID); err != nil {
		return err
	}
	if !removal && value != forum.VoteUp && value != forum.VoteDown {
		return forum.InvalidArgumentf("vote value %q", value)
	}
	_, err := s.backend.UpdateVote(ctx, contentType, contentID, userID, value, removal)
	return err
}

// VoteOnThread casts the user's vote on a thread; an existing opposite vote
// is replaced. Returns the updated thread.
func (s *Service) VoteOnThread(ctx context.Context, threadID, userID, value string) (*forum.Thread, error) {
	if err := s.vote(ctx, forum.ContentTypeThread, threadID, userID, value, false); err != nil {
		return nil, err
	}
	thread, err := s.backend.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	s.indexDocument(ctx, threadSearchDocument(thread))
	return thread, nil
}

// RemoveThreadVote removes the user's vote; removing a missing vote is a
// no-op.
func (s *Service) RemoveThreadVote(ctx context.Context, threadID, userID string) (*forum.Thread, error) {
	if err := s.vote(ctx, forum.ContentTypeThread, threadID, userID, "", true); err != nil {
		return nil, err
	}
	thread, err := s.backend.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	s.indexDocument(ctx, threadSearchDocument(thread))
	return thread, nil
}

// VoteOnComment casts the user's vote on a comment.
func (s *Service) VoteOnComment(ctx context.Context, commentID, userID, value string) (*forum.Comment, error) {
	if err := s.vote(ctx, forum.ContentTypeComment, commentID, userID, value, false); err != nil {
		return nil, err
	}
	return s.backend.GetComment(ctx, commentID)
}

// RemoveCommentVote removes the user's vote from a comment.
func (s *Service) RemoveCommentVote(ctx context.Context, commentID, userID string) (*forum.Comment, error) {
	if err := s.vote(ctx, forum.ContentTypeComment, commentID, userID, "", true); err != nil {
		return nil, err
	}
	return s.backend.GetComment(ctx, commentID)
}
