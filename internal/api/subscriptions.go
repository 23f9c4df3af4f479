package api

import (
	"context"

	"coursetalk/internal/forum"
)

// Subscribe subscribes the user to a thread. Both sides must exist;
// subscribing twice returns the existing subscription.
func (s *Service) Subscribe(ctx context.Context, userID, sourceID, sourceType string) (*forum.Subscription, error) {
	if _, err := s.backend.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if sourceType == "" || sourceType == forum.ContentTypeThread {
		if _, err := s.backend.GetThread(ctx, sourceID); err != nil {
			return nil, err
		}
	}
	return s.backend.Subscribe(ctx, userID, sourceID, sourceType)
}

// Unsubscribe drops the user's subscription; a missing one is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, userID, sourceID string) error {
	if _, err := s.backend.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.backend.Unsubscribe(ctx, userID, sourceID)
}

// GetThreadSubscribers lists the subscriptions pointing at a thread.
func (s *Service) GetThreadSubscribers(ctx context.Context, threadID string) ([]*forum.Subscription, error) {
	if _, err := s.backend.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	return s.backend.GetSubscribers(ctx, threadID)
}
