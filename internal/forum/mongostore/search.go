package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coursetalk/internal/forum"
)

// StreamSearchDocuments streams every content document in indexable form,
// restricted to documents updated at or after since when since is non-nil.
func (s *Store) StreamSearchDocuments(ctx context.Context, since *time.Time, fn func(forum.SearchDocument) error) error {
	filter := bson.M{}
	if since != nil {
		filter["updated_at"] = bson.M{"$gte": *since}
	}
	cur, err := s.contents.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return errors.Wrap(err, "stream contents for index")
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc contentDoc
		if err := cur.Decode(&doc); err != nil {
			return errors.Wrap(err, "decode content for index")
		}
		sd := forum.SearchDocument{
			ID:          doc.ID.Hex(),
			ContentType: doc.Type,
			CourseID:    doc.CourseID,
			AuthorID:    doc.AuthorID,
			Body:        doc.Body,
			CreatedAt:   doc.CreatedAt,
			UpdatedAt:   doc.UpdatedAt,
		}
		if doc.Type == forum.ContentTypeThread {
			lastActivity := doc.LastActivityAt
			sd.CommentableID = doc.CommentableID
			sd.Context = doc.Context
			sd.GroupID = doc.GroupID
			sd.Title = doc.Title
			sd.CommentCount = doc.CommentCount
			sd.VotesPoint = doc.Votes.Point
			sd.LastActivityAt = &lastActivity
		} else {
			sd.ThreadID = doc.ThreadID.Hex()
		}
		if err := fn(sd); err != nil {
			return err
		}
	}
	return errors.Wrap(cur.Err(), "stream contents for index")
}
