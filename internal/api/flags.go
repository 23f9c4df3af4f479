package api

import (
	"context"

	"coursetalk/internal/forum"
)

// FlagThread adds the user to the thread's abuse flaggers.
func (s *Service) FlagThread(ctx context.Context, threadID, userID string) (*forum.Thread, error) {
	if _, err := s.backend.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.backend.FlagAsAbuse(ctx, forum.ContentTypeThread, threadID, userID); err != nil {
		return nil, err
	}
	return s.backend.GetThread(ctx, threadID)
}

// UnflagThread removes the user's flag; all=true retires every active flag
// into the historical set instead.
func (s *Service) UnflagThread(ctx context.Context, threadID, userID string, all bool) (*forum.Thread, error) {
	if all {
		if err := s.backend.UnflagAllAsAbuse(ctx, forum.ContentTypeThread, threadID); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.backend.GetUser(ctx, userID); err != nil {
			return nil, err
		}
		if err := s.backend.UnflagAsAbuse(ctx, forum.ContentTypeThread, threadID, userID); err != nil {
			return nil, err
		}
	}
	return s.backend.GetThread(ctx, threadID)
}

// FlagComment adds the user to the comment's abuse flaggers.
func (s *Service) FlagComment(ctx context.Context, commentID, userID string) (*forum.Comment, error) {
	if _, err := s.backend.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.backend.FlagAsAbuse(ctx, forum.ContentTypeComment, commentID, userID); err != nil {
		return nil, err
	}
	return s.backend.GetComment(ctx, commentID)
}

// UnflagComment removes the user's flag; all=true retires every active
// flag into the historical set instead.
func (s *Service) UnflagComment(ctx context.Context, commentID, userID string, all bool) (*forum.Comment, error) {
	if all {
		if err := s.backend.UnflagAllAsAbuse(ctx, forum.ContentTypeComment, commentID); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.backend.GetUser(ctx, userID); err != nil {
			return nil, err
		}
		if err := s.backend.UnflagAsAbuse(ctx, forum.ContentTypeComment, commentID, userID); err != nil {
			return nil, err
		}
	}
	return s.backend.GetComment(ctx, commentID)
}
