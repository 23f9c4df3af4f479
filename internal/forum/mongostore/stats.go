package mongostore

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"coursetalk/internal/forum"
)

func (s *Store) ensureStatsElement(ctx context.Context, userID, courseID string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "course_stats.course_id": bson.M{"$ne": courseID}},
		bson.M{"$push": bson.M{"course_stats": courseStatDoc{CourseID: courseID}}},
	)
	if err != nil {
		return errors.Wrap(err, "ensure course stats")
	}
	_ = res
	return nil
}

// UpdateStatsForCourse applies the deltas to the user's embedded stats
// element with $inc, creating a zeroed element first if absent, then
// rebuilds the element from source data; the rebuild is authoritative.
func (s *Store) UpdateStatsForCourse(ctx context.Context, userID, courseID string, deltas map[string]int) error {
	if err := s.ensureStatsElement(ctx, userID, courseID); err != nil {
		return err
	}
	if len(deltas) > 0 {
		inc := bson.M{}
		for field, d := range deltas {
			switch field {
			case forum.StatThreads, forum.StatResponses, forum.StatReplies,
				forum.StatActiveFlags, forum.StatInactiveFlags:
				inc["course_stats.$."+field] = d
			default:
				return forum.InvalidArgumentf("stats field %q", field)
			}
		}
		_, err := s.users.UpdateOne(ctx,
			bson.M{"_id": userID, "course_stats.course_id": courseID},
			bson.M{
				"$inc": inc,
				"$set": bson.M{"course_stats.$.last_activity_at": time.Now().UTC()},
			},
		)
		if err != nil {
			return errors.Wrap(err, "apply stats delta")
		}
	}
	_, err := s.BuildCourseStats(ctx, userID, courseID)
	return err
}

// BuildCourseStats recomputes the stats element by aggregating all
// non-anonymous content the author wrote in the course. Idempotent;
// concurrent rebuilds race last-writer-wins.
func (s *Store) BuildCourseStats(ctx context.Context, authorID, courseID string) (*forum.CourseStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"author_id":          authorID,
			"course_id":          courseID,
			"anonymous":          false,
			"anonymous_to_peers": false,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"type":     "$_type",
				"is_reply": bson.M{"$gt": bson.A{"$parent_id", nil}},
			},
			"count": bson.M{"$sum": 1},
			"active_flags": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{bson.M{"$size": bson.M{"$ifNull": bson.A{"$abuse_flaggers", bson.A{}}}}, 0}},
				1, 0,
			}}},
			"inactive_flags": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{bson.M{"$size": bson.M{"$ifNull": bson.A{"$historical_abuse_flaggers", bson.A{}}}}, 0}},
				1, 0,
			}}},
			"last_activity_at": bson.M{"$max": "$updated_at"},
		}}},
	}
	cur, err := s.contents.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate course stats")
	}
	defer cur.Close(ctx)

	stat := courseStatDoc{CourseID: courseID}
	for cur.Next(ctx) {
		var row struct {
			ID struct {
				Type    string `bson:"type"`
				IsReply bool   `bson:"is_reply"`
			} `bson:"_id"`
			Count          int        `bson:"count"`
			ActiveFlags    int        `bson:"active_flags"`
			InactiveFlags  int        `bson:"inactive_flags"`
			LastActivityAt *time.Time `bson:"last_activity_at"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode stats group")
		}
		switch {
		case row.ID.Type == forum.ContentTypeThread:
			stat.Threads += row.Count
		case row.ID.IsReply:
			stat.Replies += row.Count
		default:
			stat.Responses += row.Count
		}
		stat.ActiveFlags += row.ActiveFlags
		stat.InactiveFlags += row.InactiveFlags
		if row.LastActivityAt != nil &&
			(stat.LastActivityAt == nil || row.LastActivityAt.After(*stat.LastActivityAt)) {
			stat.LastActivityAt = row.LastActivityAt
		}
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate stats groups")
	}

	if err := s.ensureStatsElement(ctx, authorID, courseID); err != nil {
		return nil, err
	}
	_, err = s.users.UpdateOne(ctx,
		bson.M{"_id": authorID, "course_stats.course_id": courseID},
		bson.M{"$set": bson.M{
			"course_stats.$.threads":          stat.Threads,
			"course_stats.$.responses":        stat.Responses,
			"course_stats.$.replies":          stat.Replies,
			"course_stats.$.active_flags":     stat.ActiveFlags,
			"course_stats.$.inactive_flags":   stat.InactiveFlags,
			"course_stats.$.last_activity_at": stat.LastActivityAt,
		}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "store course stats")
	}

	username := ""
	if doc, err := s.getUserDoc(ctx, authorID); err == nil {
		username = doc.Username
	}
	return &forum.CourseStats{
		Username:       username,
		CourseID:       courseID,
		Threads:        stat.Threads,
		Responses:      stat.Responses,
		Replies:        stat.Replies,
		ActiveFlags:    stat.ActiveFlags,
		InactiveFlags:  stat.InactiveFlags,
		LastActivityAt: stat.LastActivityAt,
	}, nil
}

func (s *Store) UpdateAllUsersInCourse(ctx context.Context, courseID string) ([]string, error) {
	raw, err := s.contents.Distinct(ctx, "author_id", bson.M{
		"course_id":          courseID,
		"anonymous":          false,
		"anonymous_to_peers": false,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list course authors")
	}
	authors := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			authors = append(authors, id)
		}
	}
	for _, id := range authors {
		if _, err := s.BuildCourseStats(ctx, id, courseID); err != nil {
			return nil, err
		}
	}
	return authors, nil
}

// GetUserStats lists the per-user stats elements for a course with exact
// pagination, sorted by the requested criterion.
func (s *Store) GetUserStats(ctx context.Context, courseID string, q forum.UserStatsQuery) (*forum.UserStatsPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = 100
	}

	filter := bson.M{"course_stats.course_id": courseID}
	if len(q.Usernames) > 0 {
		filter["username"] = bson.M{"$in": q.Usernames}
	}
	cur, err := s.users.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find user stats")
	}
	defer cur.Close(ctx)

	var stats []*forum.CourseStats
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode user")
		}
		for _, st := range doc.CourseStats {
			if st.CourseID != courseID {
				continue
			}
			stats = append(stats, &forum.CourseStats{
				Username:       doc.Username,
				CourseID:       courseID,
				Threads:        st.Threads,
				Responses:      st.Responses,
				Replies:        st.Replies,
				ActiveFlags:    st.ActiveFlags,
				InactiveFlags:  st.InactiveFlags,
				LastActivityAt: st.LastActivityAt,
			})
		}
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate user stats")
	}

	sortUserStats(stats, q.SortKey)

	total := int64(len(stats))
	start := (page - 1) * perPage
	if start > len(stats) {
		start = len(stats)
	}
	end := start + perPage
	if end > len(stats) {
		end = len(stats)
	}
	pageStats := stats[start:end]
	if pageStats == nil {
		pageStats = []*forum.CourseStats{}
	}
	return &forum.UserStatsPage{
		Stats:    pageStats,
		Page:     page,
		NumPages: forum.NumPages(total, perPage),
		Count:    total,
	}, nil
}

func sortUserStats(stats []*forum.CourseStats, sortKey string) {
	less := func(a, b *forum.CourseStats) bool {
		switch sortKey {
		case forum.UserStatsSortFlagged:
			if a.ActiveFlags != b.ActiveFlags {
				return a.ActiveFlags > b.ActiveFlags
			}
			if a.InactiveFlags != b.InactiveFlags {
				return a.InactiveFlags > b.InactiveFlags
			}
		case forum.UserStatsSortRecency:
			at, bt := a.LastActivityAt, b.LastActivityAt
			switch {
			case at != nil && bt != nil && !at.Equal(*bt):
				return at.After(*bt)
			case at != nil && bt == nil:
				return true
			case at == nil && bt != nil:
				return false
			}
		default:
			if a.Threads != b.Threads {
				return a.Threads > b.Threads
			}
			if a.Responses != b.Responses {
				return a.Responses > b.Responses
			}
			if a.Replies != b.Replies {
				return a.Replies > b.Replies
			}
		}
		return a.Username < b.Username
	}
	sort.SliceStable(stats, func(i, j int) bool { return less(stats[i], stats[j]) })
}
