package sqlstore

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursetalk/internal/forum"
)

func subscriptionToModel(r subscriptionRow) *forum.Subscription {
	return &forum.Subscription{
		SubscriberID: r.SubscriberID,
		SourceID:     formatPK(r.SourceID),
		SourceType:   r.SourceType,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Subscribe upserts the (subscriber, source) pair.
func (s *Store) Subscribe(ctx context.Context, subscriberID, sourceID, sourceType string) (*forum.Subscription, error) {
	pk, ok := parsePK(sourceID)
	if !ok {
		return nil, forum.NotFoundf("source %q", sourceID)
	}
	if sourceType == "" {
		sourceType = forum.ContentTypeThread
	}
	row := subscriptionRow{SubscriberID: subscriberID, SourceID: pk, SourceType: sourceType}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}
	if row.ID == 0 {
		if err := s.db.WithContext(ctx).
			Where("subscriber_id = ? AND source_id = ? AND source_type = ?", subscriberID, pk, sourceType).
			First(&row).Error; err != nil {
			return nil, errors.Wrap(err, "load subscription")
		}
	}
	return subscriptionToModel(row), nil
}

func (s *Store) Unsubscribe(ctx context.Context, subscriberID, sourceID string) error {
	pk, ok := parsePK(sourceID)
	if !ok {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ? AND source_id = ?", subscriberID, pk).
		Delete(&subscriptionRow{}).Error
	return errors.Wrap(err, "unsubscribe")
}

func (s *Store) GetSubscription(ctx context.Context, subscriberID, sourceID string) (*forum.Subscription, error) {
	pk, ok := parsePK(sourceID)
	if !ok {
		return nil, forum.NotFoundf("subscription to %q", sourceID)
	}
	var row subscriptionRow
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ? AND source_id = ?", subscriberID, pk).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, forum.NotFoundf("subscription of %q to %q", subscriberID, sourceID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get subscription")
	}
	return subscriptionToModel(row), nil
}

func (s *Store) GetSubscribers(ctx context.Context, sourceID string) ([]*forum.Subscription, error) {
	pk, ok := parsePK(sourceID)
	if !ok {
		return []*forum.Subscription{}, nil
	}
	var rows []subscriptionRow
	err := s.db.WithContext(ctx).Where("source_id = ?", pk).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list subscribers")
	}
	subs := make([]*forum.Subscription, len(rows))
	for i, r := range rows {
		subs[i] = subscriptionToModel(r)
	}
	return subs, nil
}

// FindSubscribedThreadIDs lists the ids of course threads the user follows.
func (s *Store) FindSubscribedThreadIDs(ctx context.Context, userID, courseID string) ([]string, error) {
	var pks []uint64
	err := s.db.WithContext(ctx).Model(&subscriptionRow{}).
		Joins("JOIN comment_threads ON comment_threads.id = subscriptions.source_id").
		Where("subscriptions.subscriber_id = ? AND subscriptions.source_type = ? AND comment_threads.course_id = ?",
			userID, forum.ContentTypeThread, courseID).
		Pluck("subscriptions.source_id", &pks).Error
	if err != nil {
		return nil, errors.Wrap(err, "list subscribed threads")
	}
	ids := make([]string, len(pks))
	for i, pk := range pks {
		ids[i] = formatPK(pk)
	}
	return ids, nil
}

func (s *Store) DeleteSubscriptionsOfThread(ctx context.Context, threadID string) (int64, error) {
	pk, ok := parsePK(threadID)
	if !ok {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("source_id = ? AND source_type = ?", pk, forum.ContentTypeThread).
		Delete(&subscriptionRow{})
	return res.RowsAffected, errors.Wrap(res.Error, "delete thread subscriptions")
}

func (s *Store) UnsubscribeAllForUser(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Where("subscriber_id = ?", userID).Delete(&subscriptionRow{}).Error
	return errors.Wrap(err, "unsubscribe all")
}
