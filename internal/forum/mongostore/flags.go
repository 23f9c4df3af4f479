package mongostore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"coursetalk/internal/forum"
)

// FlagAsAbuse adds the user to the content's flagger set; the very first
// flagger ever bumps the author's active_flags.
func (s *Store) FlagAsAbuse(ctx context.Context, contentType, contentID, userID string) error {
	doc, err := s.getDoc(ctx, contentType, contentID)
	if err != nil {
		return err
	}
	if contains(doc.AbuseFlaggers, userID) {
		// Flagging twice is a no-op, not an error.
		return nil
	}
	flaggers := append(emptyIfNil(doc.AbuseFlaggers), userID)
	_, err = s.contents.UpdateByID(ctx, doc.ID, bson.M{"$set": bson.M{"abuse_flaggers": flaggers}})
	if err != nil {
		return errors.Wrap(err, "add abuse flagger")
	}
	if len(flaggers) == 1 {
		return s.UpdateStatsForCourse(ctx, doc.AuthorID, doc.CourseID, map[string]int{forum.StatActiveFlags: 1})
	}
	return nil
}

// updateStatsAfterUnflag re-reads the content and applies the
// active/inactive deltas implied by the flagger-set mutation.
func (s *Store) updateStatsAfterUnflag(ctx context.Context, authorID, contentType, contentID string, hadNoHistoricalFlags bool) error {
	doc, err := s.getDoc(ctx, contentType, contentID)
	if err != nil {
		return err
	}
	if hadNoHistoricalFlags && len(doc.HistoricalAbuseFlaggers) == 0 {
		if err := s.UpdateStatsForCourse(ctx, authorID, doc.CourseID, map[string]int{forum.StatInactiveFlags: 1}); err != nil {
			return err
		}
	}
	if len(doc.AbuseFlaggers) == 0 {
		return s.UpdateStatsForCourse(ctx, authorID, doc.CourseID, map[string]int{forum.StatActiveFlags: -1})
	}
	return nil
}

func (s *Store) UnflagAsAbuse(ctx context.Context, contentType, contentID, userID string) error {
	doc, err := s.getDoc(ctx, contentType, contentID)
	if err != nil {
		return err
	}
	hadNoHistorical := len(doc.HistoricalAbuseFlaggers) == 0
	if !contains(doc.AbuseFlaggers, userID) {
		return nil
	}
	flaggers := remove(doc.AbuseFlaggers, userID)
	_, err = s.contents.UpdateByID(ctx, doc.ID, bson.M{"$set": bson.M{"abuse_flaggers": flaggers}})
	if err != nil {
		return errors.Wrap(err, "remove abuse flagger")
	}
	return s.updateStatsAfterUnflag(ctx, doc.AuthorID, contentType, contentID, hadNoHistorical)
}

// UnflagAllAsAbuse unions the current flagger set into the historical set
// and empties the current one.
func (s *Store) UnflagAllAsAbuse(ctx context.Context, contentType, contentID string) error {
	doc, err := s.getDoc(ctx, contentType, contentID)
	if err != nil {
		return err
	}
	hadNoHistorical := len(doc.HistoricalAbuseFlaggers) == 0

	historical := emptyIfNil(doc.HistoricalAbuseFlaggers)
	for _, u := range doc.AbuseFlaggers {
		if !contains(historical, u) {
			historical = append(historical, u)
		}
	}
	_, err = s.contents.UpdateByID(ctx, doc.ID, bson.M{"$set": bson.M{
		"abuse_flaggers":            []string{},
		"historical_abuse_flaggers": historical,
	}})
	if err != nil {
		return errors.Wrap(err, "unflag all")
	}
	return s.updateStatsAfterUnflag(ctx, doc.AuthorID, contentType, contentID, hadNoHistorical)
}

// GetAbuseFlaggedCount counts flagged comments per thread.
func (s *Store) GetAbuseFlaggedCount(ctx context.Context, threadIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	oids := parseOIDs(threadIDs)
	if len(oids) == 0 {
		return counts, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"_type":             forum.ContentTypeComment,
			"comment_thread_id": bson.M{"$in": oids},
			"abuse_flaggers":    bson.M{"$ne": []string{}, "$exists": true},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$comment_thread_id",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cur, err := s.contents.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "count flagged comments")
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Count int                `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode flag count")
		}
		counts[row.ID.Hex()] = row.Count
	}
	return counts, errors.Wrap(cur.Err(), "iterate flag counts")
}
