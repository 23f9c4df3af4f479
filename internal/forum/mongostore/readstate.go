package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"coursetalk/internal/forum"
)

// MarkAsRead stamps the thread's entry in the user's per-course read state
// with the current time.
func (s *Store) MarkAsRead(ctx context.Context, userID, threadID string) error {
	thread, err := s.getDoc(ctx, forum.ContentTypeThread, threadID)
	if err != nil {
		return err
	}
	if _, err := s.getUserDoc(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "read_states.course_id": thread.CourseID},
		bson.M{"$set": bson.M{"read_states.$.last_read_times." + threadID: now}},
	)
	if err != nil {
		return errors.Wrap(err, "mark as read")
	}
	if res.MatchedCount == 0 {
		// No read state for this course yet.
		_, err = s.users.UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{"$push": bson.M{"read_states": readStateDoc{
				CourseID:      thread.CourseID,
				LastReadTimes: map[string]time.Time{threadID: now},
			}}},
		)
		if err != nil {
			return errors.Wrap(err, "create read state")
		}
	}
	return nil
}

// GetUserReadDates returns the user's last-read timestamps by thread id for
// one course. Users or courses without read state yield an empty map.
func (s *Store) GetUserReadDates(ctx context.Context, userID, courseID string) (map[string]time.Time, error) {
	dates := map[string]time.Time{}
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return dates, nil
		}
		return nil, errors.Wrap(err, "get read dates")
	}
	for _, rs := range doc.ReadStates {
		if rs.CourseID != courseID {
			continue
		}
		for id, ts := range rs.LastReadTimes {
			dates[id] = ts
		}
	}
	return dates, nil
}

// GetReadStates reports, per thread the user has read, whether it is read
// and how many comments arrived since. Threads with no read date are
// omitted; callers default those to unread with the full comment count.
func (s *Store) GetReadStates(ctx context.Context, threadIDs []string, userID, courseID string) (map[string]forum.ThreadReadState, error) {
	states := map[string]forum.ThreadReadState{}
	if userID == "" || len(threadIDs) == 0 {
		return states, nil
	}
	readDates, err := s.GetUserReadDates(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if len(readDates) == 0 {
		return states, nil
	}

	for _, id := range threadIDs {
		readDate, ok := readDates[id]
		if !ok {
			continue
		}
		oid, ok := parseOID(id)
		if !ok {
			continue
		}
		var doc contentDoc
		err := s.contents.FindOne(ctx, bson.M{"_id": oid, "_type": forum.ContentTypeThread}).Decode(&doc)
		if err != nil {
			if isNoDocuments(err) {
				continue
			}
			return nil, errors.Wrap(err, "get thread for read state")
		}
		unread, err := s.contents.CountDocuments(ctx, bson.M{
			"_type":             forum.ContentTypeComment,
			"comment_thread_id": oid,
			"created_at":        bson.M{"$gte": readDate},
			"author_id":         bson.M{"$ne": userID},
		})
		if err != nil {
			return nil, errors.Wrap(err, "count unread comments")
		}
		states[id] = forum.ThreadReadState{
			IsRead:             !readDate.Before(doc.LastActivityAt),
			UnreadCommentCount: int(unread),
		}
	}
	return states, nil
}
