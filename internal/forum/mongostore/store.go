package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coursetalk/internal/forum"
)

const connectTimeout = 10 * time.Second

// Store is the document forum backend. All content lives in a single
// contents collection discriminated by _type; users embed their read states
// and course stats; subscriptions have their own collection.
type Store struct {
	client        *mongo.Client
	contents      *mongo.Collection
	users         *mongo.Collection
	subscriptions *mongo.Collection
}

var _ forum.Backend = (*Store)(nil)

// Open connects to MongoDB and prepares the collections and indexes.
func Open(uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "ping mongodb")
	}

	db := client.Database(database)
	s := &Store{
		client:        client,
		contents:      db.Collection("contents"),
		users:         db.Collection("users"),
		subscriptions: db.Collection("subscriptions"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	log.WithField("backend", "mongodb").Info("document store connected")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	contentIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "_type", Value: 1}, {Key: "course_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "_type", Value: 1}, {Key: "course_id", Value: 1}, {Key: "last_activity_at", Value: -1}}},
		{Keys: bson.D{{Key: "_type", Value: 1}, {Key: "course_id", Value: 1}, {Key: "votes.point", Value: -1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "_type", Value: 1}, {Key: "course_id", Value: 1}, {Key: "comment_count", Value: -1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "comment_thread_id", Value: 1}, {Key: "parent_id", Value: 1}}},
		{Keys: bson.D{{Key: "author_id", Value: 1}, {Key: "course_id", Value: 1}}},
		{Keys: bson.D{{Key: "commentable_id", Value: 1}, {Key: "course_id", Value: 1}}},
	}
	if _, err := s.contents.Indexes().CreateMany(ctx, contentIndexes); err != nil {
		return errors.Wrap(err, "create content indexes")
	}
	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "course_stats.course_id", Value: 1}}},
	}
	if _, err := s.users.Indexes().CreateMany(ctx, userIndexes); err != nil {
		return errors.Wrap(err, "create user indexes")
	}
	subIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "subscriber_id", Value: 1},
				{Key: "source_id", Value: 1},
				{Key: "source_type", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "source_type", Value: 1}}},
	}
	if _, err := s.subscriptions.Indexes().CreateMany(ctx, subIndexes); err != nil {
		return errors.Wrap(err, "create subscription indexes")
	}
	return nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return errors.Wrap(s.client.Disconnect(ctx), "disconnect mongodb")
}
