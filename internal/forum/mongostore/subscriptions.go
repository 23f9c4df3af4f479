package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coursetalk/internal/forum"
)

type subscriptionDoc struct {
	SubscriberID string    `bson:"subscriber_id"`
	SourceID     string    `bson:"source_id"`
	SourceType   string    `bson:"source_type"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d *subscriptionDoc) toModel() *forum.Subscription {
	return &forum.Subscription{
		SubscriberID: d.SubscriberID,
		SourceID:     d.SourceID,
		SourceType:   d.SourceType,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Subscribe upserts the (subscriber, source) pair.
func (s *Store) Subscribe(ctx context.Context, subscriberID, sourceID, sourceType string) (*forum.Subscription, error) {
	if sourceType == "" {
		sourceType = forum.ContentTypeThread
	}
	now := time.Now().UTC()
	filter := bson.M{
		"subscriber_id": subscriberID,
		"source_id":     sourceID,
		"source_type":   sourceType,
	}
	_, err := s.subscriptions.UpdateOne(ctx, filter,
		bson.M{
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe")
	}
	var doc subscriptionDoc
	if err := s.subscriptions.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "load subscription")
	}
	return doc.toModel(), nil
}

func (s *Store) Unsubscribe(ctx context.Context, subscriberID, sourceID string) error {
	_, err := s.subscriptions.DeleteMany(ctx, bson.M{
		"subscriber_id": subscriberID,
		"source_id":     sourceID,
	})
	return errors.Wrap(err, "unsubscribe")
}

func (s *Store) GetSubscription(ctx context.Context, subscriberID, sourceID string) (*forum.Subscription, error) {
	var doc subscriptionDoc
	err := s.subscriptions.FindOne(ctx, bson.M{
		"subscriber_id": subscriberID,
		"source_id":     sourceID,
	}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, forum.NotFoundf("subscription of %q to %q", subscriberID, sourceID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get subscription")
	}
	return doc.toModel(), nil
}

func (s *Store) GetSubscribers(ctx context.Context, sourceID string) ([]*forum.Subscription, error) {
	cur, err := s.subscriptions.Find(ctx, bson.M{"source_id": sourceID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list subscribers")
	}
	defer cur.Close(ctx)

	subs := []*forum.Subscription{}
	for cur.Next(ctx) {
		var doc subscriptionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode subscription")
		}
		subs = append(subs, doc.toModel())
	}
	return subs, errors.Wrap(cur.Err(), "iterate subscribers")
}

// FindSubscribedThreadIDs lists the ids of course threads the user follows.
func (s *Store) FindSubscribedThreadIDs(ctx context.Context, userID, courseID string) ([]string, error) {
	raw, err := s.subscriptions.Distinct(ctx, "source_id", bson.M{
		"subscriber_id": userID,
		"source_type":   forum.ContentTypeThread,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list subscriptions")
	}
	subscribed := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			subscribed = append(subscribed, id)
		}
	}
	oids := parseOIDs(subscribed)
	if len(oids) == 0 {
		return []string{}, nil
	}
	inCourse, err := s.contents.Distinct(ctx, "_id", bson.M{
		"_type":     forum.ContentTypeThread,
		"_id":       bson.M{"$in": oids},
		"course_id": courseID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "filter subscribed threads by course")
	}
	return hexIDs(inCourse), nil
}

func (s *Store) DeleteSubscriptionsOfThread(ctx context.Context, threadID string) (int64, error) {
	res, err := s.subscriptions.DeleteMany(ctx, bson.M{
		"source_id":   threadID,
		"source_type": forum.ContentTypeThread,
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete thread subscriptions")
	}
	return res.DeletedCount, nil
}

func (s *Store) UnsubscribeAllForUser(ctx context.Context, userID string) error {
	_, err := s.subscriptions.DeleteMany(ctx, bson.M{"subscriber_id": userID})
	return errors.Wrap(err, "unsubscribe all")
}
