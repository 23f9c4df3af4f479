package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coursetalk/internal/forum"
)

const maxCommentDepth = 1

func (s *Store) InsertComment(ctx context.Context, f forum.CommentFields) (string, error) {
	thread, err := s.getDoc(ctx, forum.ContentTypeThread, f.ThreadID)
	if err != nil {
		return "", err
	}

	var parent *contentDoc
	depth := 0
	if f.ParentID != "" {
		parent, err = s.getDoc(ctx, forum.ContentTypeComment, f.ParentID)
		if err != nil {
			return "", err
		}
		depth = parent.Depth + 1
		if depth > maxCommentDepth {
			return "", forum.InvalidArgumentf("comment nesting deeper than %d", maxCommentDepth)
		}
	}

	now := time.Now().UTC()
	doc := contentDoc{
		Type:                    forum.ContentTypeComment,
		ThreadID:                thread.ID,
		Depth:                   depth,
		CourseID:                thread.CourseID,
		AuthorID:                f.AuthorID,
		AuthorUsername:          f.AuthorUsername,
		Body:                    f.Body,
		Anonymous:               f.Anonymous,
		AnonymousToPeers:        f.AnonymousToPeers,
		Visible:                 true,
		Votes:                   forum.BuildVotes(nil, nil),
		AbuseFlaggers:           []string{},
		HistoricalAbuseFlaggers: []string{},
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if parent != nil {
		doc.ParentID = &parent.ID
	}
	res, err := s.contents.InsertOne(ctx, doc)
	if err != nil {
		return "", errors.Wrap(err, "insert comment")
	}

	if parent != nil {
		_, err = s.contents.UpdateByID(ctx, parent.ID, bson.M{"$inc": bson.M{"child_count": 1}})
		if err != nil {
			return "", errors.Wrap(err, "bump parent child count")
		}
	}
	_, err = s.contents.UpdateByID(ctx, thread.ID, bson.M{
		"$inc": bson.M{"comment_count": 1},
		"$set": bson.M{"last_activity_at": now},
	})
	if err != nil {
		return "", errors.Wrap(err, "bump thread comment count")
	}

	if !f.Anonymous && !f.AnonymousToPeers {
		field := forum.StatResponses
		if parent != nil {
			field = forum.StatReplies
		}
		if err := s.UpdateStatsForCourse(ctx, f.AuthorID, thread.CourseID, map[string]int{field: 1}); err != nil {
			return "", err
		}
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*forum.Comment, error) {
	doc, err := s.getDoc(ctx, forum.ContentTypeComment, id)
	if err != nil {
		return nil, err
	}
	return doc.toComment(), nil
}

func (s *Store) GetThreadComments(ctx context.Context, threadID string) ([]*forum.Comment, error) {
	oid, ok := parseOID(threadID)
	if !ok {
		return []*forum.Comment{}, nil
	}
	cur, err := s.contents.Find(ctx,
		bson.M{"_type": forum.ContentTypeComment, "comment_thread_id": oid},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "find comments")
	}
	defer cur.Close(ctx)
	comments := []*forum.Comment{}
	for cur.Next(ctx) {
		var doc contentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode comment")
		}
		comments = append(comments, doc.toComment())
	}
	return comments, errors.Wrap(cur.Err(), "iterate comments")
}

func (s *Store) UpdateComment(ctx context.Context, id string, u forum.CommentUpdate) (int64, error) {
	doc, err := s.getDoc(ctx, forum.ContentTypeComment, id)
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	update := bson.M{"$set": set}
	if u.Body != nil && *u.Body != doc.Body {
		set["body"] = *u.Body
		if u.EditingUserID != "" {
			update["$push"] = bson.M{"edit_history": forum.EditRecord{
				EditorID:       u.EditingUserID,
				EditorUsername: u.EditingUserUsername,
				OriginalBody:   doc.Body,
				ReasonCode:     u.EditReasonCode,
				CreatedAt:      time.Now().UTC(),
			}}
		}
	}
	if u.Anonymous != nil {
		set["anonymous"] = *u.Anonymous
	}
	if u.Visible != nil {
		set["visible"] = *u.Visible
	}
	if u.Endorsed != nil {
		set["endorsed"] = *u.Endorsed
		if *u.Endorsed && u.EndorsementUserID != "" {
			set["endorsement"] = forum.Endorsement{UserID: u.EndorsementUserID, Time: time.Now().UTC()}
		} else {
			update["$unset"] = bson.M{"endorsement": ""}
		}
	}

	res, err := s.contents.UpdateByID(ctx, doc.ID, update)
	if err != nil {
		return 0, errors.Wrap(err, "update comment")
	}
	return res.ModifiedCount, nil
}

// DeleteComment removes the comment and, for responses, its replies, and
// adjusts the owning thread's counters by the total removed.
func (s *Store) DeleteComment(ctx context.Context, id string) (int64, error) {
	doc, err := s.getDoc(ctx, forum.ContentTypeComment, id)
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	now := time.Now().UTC()

	var removed int64 = 1
	if doc.Depth == 0 {
		res, err := s.contents.DeleteMany(ctx, bson.M{
			"_type":     forum.ContentTypeComment,
			"parent_id": doc.ID,
		})
		if err != nil {
			return 0, errors.Wrap(err, "delete replies")
		}
		removed += res.DeletedCount
	} else if doc.ParentID != nil {
		_, err = s.contents.UpdateByID(ctx, *doc.ParentID, bson.M{"$inc": bson.M{"child_count": -1}})
		if err != nil {
			return 0, errors.Wrap(err, "drop parent child count")
		}
	}
	if _, err := s.contents.DeleteOne(ctx, bson.M{"_id": doc.ID}); err != nil {
		return 0, errors.Wrap(err, "delete comment")
	}
	_, err = s.contents.UpdateByID(ctx, doc.ThreadID, bson.M{
		"$inc": bson.M{"comment_count": -removed},
		"$set": bson.M{"last_activity_at": now},
	})
	if err != nil {
		return 0, errors.Wrap(err, "drop thread comment count")
	}
	return removed, nil
}

func (s *Store) DeleteCommentsOfThread(ctx context.Context, threadID string) (int64, error) {
	oid, ok := parseOID(threadID)
	if !ok {
		return 0, nil
	}
	res, err := s.contents.DeleteMany(ctx, bson.M{
		"_type":             forum.ContentTypeComment,
		"comment_thread_id": oid,
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete thread comments")
	}
	if res.DeletedCount > 0 {
		_, err = s.contents.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"comment_count": 0}})
		if err != nil {
			return 0, errors.Wrap(err, "reset comment count")
		}
	}
	return res.DeletedCount, nil
}
