package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"coursetalk/internal/forum"
)

func (s *Store) InsertThread(ctx context.Context, f forum.ThreadFields) (string, error) {
	if !forum.ValidThreadType(f.ThreadType) {
		return "", forum.InvalidArgumentf("thread_type %q", f.ThreadType)
	}
	if !forum.ValidContext(f.Context) {
		return "", forum.InvalidArgumentf("context %q", f.Context)
	}
	now := time.Now().UTC()
	doc := contentDoc{
		Type:                    forum.ContentTypeThread,
		CourseID:                f.CourseID,
		CommentableID:           f.CommentableID,
		AuthorID:                f.AuthorID,
		AuthorUsername:          f.AuthorUsername,
		Title:                   f.Title,
		Body:                    f.Body,
		ThreadType:              f.ThreadType,
		Context:                 f.Context,
		Anonymous:               f.Anonymous,
		AnonymousToPeers:        f.AnonymousToPeers,
		Visible:                 true,
		GroupID:                 f.GroupID,
		Votes:                   forum.BuildVotes(nil, nil),
		AbuseFlaggers:           []string{},
		HistoricalAbuseFlaggers: []string{},
		LastActivityAt:          now,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	res, err := s.contents.InsertOne(ctx, doc)
	if err != nil {
		return "", errors.Wrap(err, "insert thread")
	}
	return res.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (s *Store) getDoc(ctx context.Context, contentType, id string) (*contentDoc, error) {
	oid, ok := parseOID(id)
	if !ok {
		return nil, forum.NotFoundf("%s %q", contentType, id)
	}
	var doc contentDoc
	err := s.contents.FindOne(ctx, bson.M{"_id": oid, "_type": contentType}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, forum.NotFoundf("%s %q", contentType, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get content")
	}
	return &doc, nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*forum.Thread, error) {
	doc, err := s.getDoc(ctx, forum.ContentTypeThread, id)
	if err != nil {
		return nil, err
	}
	return doc.toThread(), nil
}

func (s *Store) GetThreadsByIDs(ctx context.Context, ids []string) ([]*forum.Thread, error) {
	oids := parseOIDs(ids)
	if len(oids) == 0 {
		return []*forum.Thread{}, nil
	}
	cur, err := s.contents.Find(ctx, bson.M{"_id": bson.M{"$in": oids}, "_type": forum.ContentTypeThread})
	if err != nil {
		return nil, errors.Wrap(err, "find threads")
	}
	defer cur.Close(ctx)
	var threads []*forum.Thread
	for cur.Next(ctx) {
		var doc contentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode thread")
		}
		threads = append(threads, doc.toThread())
	}
	if threads == nil {
		threads = []*forum.Thread{}
	}
	return threads, errors.Wrap(cur.Err(), "iterate threads")
}

func (s *Store) UpdateThread(ctx context.Context, id string, u forum.ThreadUpdate) (int64, error) {
	doc, err := s.getDoc(ctx, forum.ContentTypeThread, id)
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if u.ThreadType != nil && !forum.ValidThreadType(*u.ThreadType) {
		return 0, forum.InvalidArgumentf("thread_type %q", *u.ThreadType)
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	update := bson.M{"$set": set}
	if u.Title != nil {
		set["title"] = *u.Title
	}
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
	if u.CommentableID != nil {
		set["commentable_id"] = *u.CommentableID
	}
	if u.ThreadType != nil {
		set["thread_type"] = *u.ThreadType
	}
	if u.Anonymous != nil {
		set["anonymous"] = *u.Anonymous
	}
	if u.AnonymousToPeers != nil {
		set["anonymous_to_peers"] = *u.AnonymousToPeers
	}
	if u.Pinned != nil {
		set["pinned"] = *u.Pinned
	}
	if u.Visible != nil {
		set["visible"] = *u.Visible
	}
	if u.Closed != nil {
		set["closed"] = *u.Closed
		if *u.Closed {
			if u.ClosedByID != nil {
				set["closed_by_id"] = *u.ClosedByID
			}
			if u.CloseReasonCode != nil {
				set["close_reason_code"] = *u.CloseReasonCode
			}
		} else {
			update["$unset"] = bson.M{"closed_by_id": "", "close_reason_code": ""}
		}
	}

	res, err := s.contents.UpdateByID(ctx, doc.ID, update)
	if err != nil {
		return 0, errors.Wrap(err, "update thread")
	}
	return res.ModifiedCount, nil
}

// DeleteThread removes the thread document and the per-user last-read
// entries that reference it.
func (s *Store) DeleteThread(ctx context.Context, id string) (int64, error) {
	oid, ok := parseOID(id)
	if !ok {
		return 0, nil
	}
	_, err := s.users.UpdateMany(ctx,
		bson.M{"read_states.last_read_times." + id: bson.M{"$exists": true}},
		bson.M{"$unset": bson.M{"read_states.$[].last_read_times." + id: ""}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "clear read states")
	}
	res, err := s.contents.DeleteOne(ctx, bson.M{"_id": oid, "_type": forum.ContentTypeThread})
	if err != nil {
		return 0, errors.Wrap(err, "delete thread")
	}
	return res.DeletedCount, nil
}

// GetCourseThreadIDs lists the candidate thread ids of a course, optionally
// restricted to the given commentables.
func (s *Store) GetCourseThreadIDs(ctx context.Context, courseID string, commentableIDs []string) ([]string, error) {
	filter := bson.M{"_type": forum.ContentTypeThread, "course_id": courseID}
	if len(commentableIDs) > 0 {
		filter["commentable_id"] = bson.M{"$in": commentableIDs}
	}
	raw, err := s.contents.Distinct(ctx, "_id", filter)
	if err != nil {
		return nil, errors.Wrap(err, "list course threads")
	}
	return hexIDs(raw), nil
}

func (s *Store) FilterStandaloneThreadIDs(ctx context.Context, ids []string) ([]string, error) {
	oids := parseOIDs(ids)
	if len(oids) == 0 {
		return []string{}, nil
	}
	raw, err := s.contents.Distinct(ctx, "_id", bson.M{
		"_id":     bson.M{"$in": oids},
		"_type":   forum.ContentTypeThread,
		"context": bson.M{"$ne": forum.ContextStandalone},
	})
	if err != nil {
		return nil, errors.Wrap(err, "filter standalone threads")
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid.Hex())
		}
	}
	return out, nil
}

func (s *Store) GetCourseIDByThread(ctx context.Context, threadID string) (string, error) {
	doc, err := s.getDoc(ctx, forum.ContentTypeThread, threadID)
	if err != nil {
		return "", err
	}
	return doc.CourseID, nil
}

func (s *Store) GetCourseIDByComment(ctx context.Context, commentID string) (string, error) {
	doc, err := s.getDoc(ctx, forum.ContentTypeComment, commentID)
	if err != nil {
		return "", err
	}
	return doc.CourseID, nil
}

func (s *Store) GetCommentablesCounts(ctx context.Context, courseID string) (map[string]forum.CommentableCounts, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_type": forum.ContentTypeThread, "course_id": courseID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"commentable_id": "$commentable_id", "thread_type": "$thread_type"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cur, err := s.contents.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "count commentables")
	}
	defer cur.Close(ctx)

	counts := map[string]forum.CommentableCounts{}
	for cur.Next(ctx) {
		var row struct {
			ID struct {
				CommentableID string `bson:"commentable_id"`
				ThreadType    string `bson:"thread_type"`
			} `bson:"_id"`
			Count int `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode commentable count")
		}
		c := counts[row.ID.CommentableID]
		switch row.ID.ThreadType {
		case forum.ThreadTypeQuestion:
			c.Question = row.Count
		case forum.ThreadTypeDiscussion:
			c.Discussion = row.Count
		}
		counts[row.ID.CommentableID] = c
	}
	return counts, errors.Wrap(cur.Err(), "iterate commentable counts")
}

func (s *Store) GetEndorsedThreadIDs(ctx context.Context, threadIDs []string) (map[string]bool, error) {
	endorsed := map[string]bool{}
	oids := parseOIDs(threadIDs)
	if len(oids) == 0 {
		return endorsed, nil
	}
	raw, err := s.contents.Distinct(ctx, "comment_thread_id", bson.M{
		"_type":             forum.ContentTypeComment,
		"comment_thread_id": bson.M{"$in": oids},
		"parent_id":         bson.M{"$exists": false},
		"endorsed":          true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "find endorsed threads")
	}
	for _, v := range raw {
		if oid, ok := v.(primitive.ObjectID); ok {
			endorsed[oid.Hex()] = true
		}
	}
	return endorsed, nil
}
