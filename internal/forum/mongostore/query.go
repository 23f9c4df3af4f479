package mongostore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coursetalk/internal/forum"
)

const (
	defaultPerPage  = 20
	unreadBatchSize = 100
)

// sortSpec maps the caller sort key to document ordering. Everything sorts
// descending; the non-time keys add a created_at tie break.
func sortSpec(sortKey string) bson.D {
	field := forum.SortField(sortKey)
	spec := bson.D{{Key: field, Value: -1}}
	if forum.NeedsCreatedAtTieBreak(field) {
		spec = append(spec, bson.E{Key: "created_at", Value: -1})
	}
	return spec
}

func emptyResult(page int) *forum.ThreadQueryResult {
	return &forum.ThreadQueryResult{
		Collection:  []*forum.AnnotatedThread{},
		Page:        page,
		NumPages:    1,
		ThreadCount: 0,
	}
}

// HandleThreadsQuery runs the filter/sort/pagination pipeline over the
// candidate thread ids.
func (s *Store) HandleThreadsQuery(ctx context.Context, q forum.ThreadQuery) (*forum.ThreadQueryResult, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	queryContext := q.Context
	if queryContext == "" {
		queryContext = forum.ContextCourse
	}

	oids := parseOIDs(q.ThreadIDs)
	if len(oids) == 0 {
		if q.RawQuery {
			return &forum.ThreadQueryResult{Raw: []*forum.Thread{}}, nil
		}
		return emptyResult(page), nil
	}

	filter := bson.M{
		"_type":   forum.ContentTypeThread,
		"_id":     bson.M{"$in": oids},
		"context": queryContext,
	}

	if len(q.GroupIDs) > 0 {
		// Ungrouped threads are visible to every group.
		filter["$or"] = bson.A{
			bson.M{"group_id": bson.M{"$in": q.GroupIDs}},
			bson.M{"group_id": bson.M{"$exists": false}},
			bson.M{"group_id": nil},
		}
	}

	if q.AuthorID != "" {
		filter["author_id"] = q.AuthorID
		if q.AuthorID != q.UserID {
			// Anonymous posts are only visible to their own author.
			filter["anonymous"] = false
			filter["anonymous_to_peers"] = false
		}
	}

	if q.ThreadType != "" {
		filter["thread_type"] = q.ThreadType
	}

	if q.Flagged {
		flagged, err := s.flaggedThreadOIDs(ctx, q.CourseID)
		if err != nil {
			return nil, err
		}
		if len(flagged) == 0 {
			if q.RawQuery {
				return &forum.ThreadQueryResult{Raw: []*forum.Thread{}}, nil
			}
			return emptyResult(page), nil
		}
		filter["_id"] = bson.M{"$in": intersectOIDs(oids, flagged)}
	}

	if q.Unanswered {
		endorsed, err := s.contents.Distinct(ctx, "comment_thread_id", bson.M{
			"_type":     forum.ContentTypeComment,
			"course_id": q.CourseID,
			"parent_id": bson.M{"$exists": false},
			"endorsed":  true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "find answered threads")
		}
		filter["thread_type"] = forum.ThreadTypeQuestion
		if len(endorsed) > 0 {
			filter["_id"] = bson.M{
				"$in":  filter["_id"].(bson.M)["$in"],
				"$nin": endorsed,
			}
		}
	}

	if q.Unresponded {
		filter["comment_count"] = 0
	}

	threadCount, err := s.contents.CountDocuments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "count threads")
	}

	sortOpt := sortSpec(q.SortKey)

	if q.RawQuery {
		docs, err := s.findThreadDocs(ctx, filter, options.Find().SetSort(sortOpt))
		if err != nil {
			return nil, err
		}
		raw := make([]*forum.Thread, len(docs))
		for i := range docs {
			raw[i] = docs[i].toThread()
		}
		return &forum.ThreadQueryResult{Raw: raw}, nil
	}

	var (
		pageDocs    []contentDoc
		numPages    int
		approximate bool
	)
	if q.Unread && q.UserID != "" {
		// The unread classification cannot be pushed into the query: stream
		// in sort order, skip (page-1)*perPage unread threads, then collect
		// perPage more. The page total is approximate in this branch.
		readDates, err := s.GetUserReadDates(ctx, q.UserID, q.CourseID)
		if err != nil {
			return nil, err
		}
		cur, err := s.contents.Find(ctx, filter,
			options.Find().SetSort(sortOpt).SetBatchSize(unreadBatchSize))
		if err != nil {
			return nil, errors.Wrap(err, "stream threads")
		}
		defer cur.Close(ctx)

		toSkip := (page - 1) * perPage
		skipped := 0
		hasMore := false
		for cur.Next(ctx) {
			var doc contentDoc
			if err := cur.Decode(&doc); err != nil {
				return nil, errors.Wrap(err, "decode thread")
			}
			readDate, seen := readDates[doc.ID.Hex()]
			if seen && !readDate.Before(doc.LastActivityAt) {
				continue
			}
			if skipped < toSkip {
				skipped++
				continue
			}
			if len(pageDocs) == perPage {
				hasMore = true
				break
			}
			pageDocs = append(pageDocs, doc)
		}
		if err := cur.Err(); err != nil {
			return nil, errors.Wrap(err, "stream threads")
		}
		numPages = page
		if hasMore {
			numPages = page + 1
		}
		approximate = true
	} else {
		pageDocs, err = s.findThreadDocs(ctx, filter, options.Find().
			SetSort(sortOpt).
			SetSkip(int64((page-1)*perPage)).
			SetLimit(int64(perPage)))
		if err != nil {
			return nil, err
		}
		numPages = forum.NumPages(threadCount, perPage)
	}

	collection, err := s.presentThreads(ctx, pageDocs, q.UserID, q.CourseID, q.CountFlagged)
	if err != nil {
		return nil, err
	}
	return &forum.ThreadQueryResult{
		Collection:  collection,
		Page:        page,
		NumPages:    numPages,
		ThreadCount: threadCount,
		Approximate: approximate,
	}, nil
}

func (s *Store) findThreadDocs(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]contentDoc, error) {
	cur, err := s.contents.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "query threads")
	}
	defer cur.Close(ctx)
	var docs []contentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode threads")
	}
	return docs, nil
}

// flaggedThreadOIDs collects course threads that are flagged themselves or
// contain at least one flagged comment.
func (s *Store) flaggedThreadOIDs(ctx context.Context, courseID string) ([]primitive.ObjectID, error) {
	flaggedFilter := bson.M{"$exists": true, "$ne": []string{}}

	fromComments, err := s.contents.Distinct(ctx, "comment_thread_id", bson.M{
		"_type":          forum.ContentTypeComment,
		"course_id":      courseID,
		"abuse_flaggers": flaggedFilter,
	})
	if err != nil {
		return nil, errors.Wrap(err, "find flagged comments")
	}
	fromThreads, err := s.contents.Distinct(ctx, "_id", bson.M{
		"_type":          forum.ContentTypeThread,
		"course_id":      courseID,
		"abuse_flaggers": flaggedFilter,
	})
	if err != nil {
		return nil, errors.Wrap(err, "find flagged threads")
	}

	set := map[primitive.ObjectID]struct{}{}
	for _, raw := range [][]interface{}{fromComments, fromThreads} {
		for _, v := range raw {
			if oid, ok := v.(primitive.ObjectID); ok {
				set[oid] = struct{}{}
			}
		}
	}
	oids := make([]primitive.ObjectID, 0, len(set))
	for oid := range set {
		oids = append(oids, oid)
	}
	return oids, nil
}

func intersectOIDs(a, b []primitive.ObjectID) []primitive.ObjectID {
	inB := make(map[primitive.ObjectID]struct{}, len(b))
	for _, oid := range b {
		inB[oid] = struct{}{}
	}
	out := make([]primitive.ObjectID, 0, len(a))
	for _, oid := range a {
		if _, ok := inB[oid]; ok {
			out = append(out, oid)
		}
	}
	return out
}

// presentThreads computes the bulk presentation annotations for one page.
// An empty page short-circuits without touching the stores.
func (s *Store) presentThreads(ctx context.Context, docs []contentDoc, userID, courseID string, countFlagged bool) ([]*forum.AnnotatedThread, error) {
	if len(docs) == 0 {
		return []*forum.AnnotatedThread{}, nil
	}
	threads := make([]*forum.Thread, len(docs))
	ids := make([]string, len(docs))
	for i := range docs {
		threads[i] = docs[i].toThread()
		ids[i] = threads[i].ID
	}

	readStates := map[string]forum.ThreadReadState{}
	var err error
	if userID != "" {
		readStates, err = s.GetReadStates(ctx, ids, userID, courseID)
		if err != nil {
			return nil, err
		}
	}
	endorsed, err := s.GetEndorsedThreadIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	flaggedCounts := map[string]int{}
	if countFlagged {
		flaggedCounts, err = s.GetAbuseFlaggedCount(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	collection := make([]*forum.AnnotatedThread, len(threads))
	for i, t := range threads {
		state, ok := readStates[t.ID]
		if !ok {
			state = forum.ThreadReadState{IsRead: false, UnreadCommentCount: t.CommentCount}
		}
		collection[i] = &forum.AnnotatedThread{
			Thread:             t,
			IsRead:             state.IsRead,
			UnreadCommentCount: state.UnreadCommentCount,
			EndorsedResponse:   endorsed[t.ID],
			AbuseFlaggedCount:  flaggedCounts[t.ID],
		}
	}
	return collection, nil
}
