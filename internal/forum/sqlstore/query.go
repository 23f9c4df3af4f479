package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"coursetalk/internal/forum"
)

const defaultPerPage = 20

// orderClause maps the caller sort key to SQL ordering. The relational
// backend puts pinned threads first ahead of the requested key; the vote
// ordering aggregates the per-user vote rows inline.
func orderClause(sortKey string) string {
	field := forum.SortField(sortKey)
	exprs := []string{"pinned DESC"}
	if field == "votes.point" {
		exprs = append(exprs,
			"(SELECT COALESCE(SUM(v.vote), 0) FROM user_votes v"+
				" WHERE v.content_type = 'CommentThread' AND v.content_id = comment_threads.id) DESC")
	} else {
		exprs = append(exprs, fmt.Sprintf("comment_threads.%s DESC", field))
	}
	if forum.NeedsCreatedAtTieBreak(field) {
		exprs = append(exprs, "comment_threads.created_at DESC")
	}
	return strings.Join(exprs, ", ")
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

	pks := parsePKs(q.ThreadIDs)
	if len(pks) == 0 {
		if q.RawQuery {
			return &forum.ThreadQueryResult{Raw: []*forum.Thread{}}, nil
		}
		return emptyResult(page), nil
	}
	db := s.db.WithContext(ctx)

	base := db.Model(&threadRow{}).
		Where("comment_threads.id IN ?", pks).
		Where("comment_threads.context = ?", queryContext)

	if len(q.GroupIDs) > 0 {
		// Ungrouped threads are visible to every group.
		base = base.Where("(comment_threads.group_id IN ? OR comment_threads.group_id IS NULL)", q.GroupIDs)
	}

	if q.AuthorID != "" {
		base = base.Where("comment_threads.author_id = ?", q.AuthorID)
		if q.AuthorID != q.UserID {
			// Anonymous posts are only visible to their own author.
			base = base.Where("comment_threads.anonymous = ? AND comment_threads.anonymous_to_peers = ?", false, false)
		}
	}

	if q.ThreadType != "" {
		base = base.Where("comment_threads.thread_type = ?", q.ThreadType)
	}

	if q.Flagged {
		flaggedPKs, err := s.flaggedThreadPKs(ctx, q.CourseID)
		if err != nil {
			return nil, err
		}
		if len(flaggedPKs) == 0 {
			if q.RawQuery {
				return &forum.ThreadQueryResult{Raw: []*forum.Thread{}}, nil
			}
			return emptyResult(page), nil
		}
		base = base.Where("comment_threads.id IN ?", flaggedPKs)
	}

	if q.Unanswered {
		endorsed := db.Model(&commentRow{}).Select("thread_id").
			Where("course_id = ? AND parent_id IS NULL AND endorsed = ?", q.CourseID, true)
		base = base.Where("comment_threads.thread_type = ?", forum.ThreadTypeQuestion).
			Where("comment_threads.id NOT IN (?)", endorsed)
	}

	if q.Unresponded {
		base = base.Where("comment_threads.comment_count = 0")
	}

	var threadCount int64
	if err := base.Session(&gorm.Session{}).Count(&threadCount).Error; err != nil {
		return nil, errors.Wrap(err, "count threads")
	}

	ordered := base.Session(&gorm.Session{}).Order(orderClause(q.SortKey))

	if q.RawQuery {
		var rows []threadRow
		if err := ordered.Find(&rows).Error; err != nil {
			return nil, errors.Wrap(err, "query threads")
		}
		raw, err := s.threadsToModels(ctx, rows)
		if err != nil {
			return nil, err
		}
		return &forum.ThreadQueryResult{Raw: raw}, nil
	}

	var (
		pageRows    []threadRow
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
		rows, err := ordered.Rows()
		if err != nil {
			return nil, errors.Wrap(err, "stream threads")
		}
		defer rows.Close()

		toSkip := (page - 1) * perPage
		skipped := 0
		hasMore := false
		for rows.Next() {
			var r threadRow
			if err := db.ScanRows(rows, &r); err != nil {
				return nil, errors.Wrap(err, "scan thread")
			}
			readDate, seen := readDates[formatPK(r.ID)]
			if seen && !readDate.Before(r.LastActivityAt) {
				continue
			}
			if skipped < toSkip {
				skipped++
				continue
			}
			if len(pageRows) == perPage {
				hasMore = true
				break
			}
			pageRows = append(pageRows, r)
		}
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, "stream threads")
		}
		numPages = page
		if hasMore {
			numPages = page + 1
		}
		approximate = true
	} else {
		err := ordered.Offset((page - 1) * perPage).Limit(perPage).Find(&pageRows).Error
		if err != nil {
			return nil, errors.Wrap(err, "query threads")
		}
		numPages = forum.NumPages(threadCount, perPage)
	}

	collection, err := s.presentThreads(ctx, pageRows, q.UserID, q.CourseID, q.CountFlagged)
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

// flaggedThreadPKs collects course threads that are flagged themselves or
// contain at least one flagged comment.
func (s *Store) flaggedThreadPKs(ctx context.Context, courseID string) ([]uint64, error) {
	db := s.db.WithContext(ctx)
	set := map[uint64]struct{}{}

	var fromComments []uint64
	err := db.Model(&commentRow{}).
		Joins("JOIN abuse_flaggers ON abuse_flaggers.content_type = ? AND abuse_flaggers.content_id = comments.id", forum.ContentTypeComment).
		Where("comments.course_id = ?", courseID).
		Distinct().Pluck("comments.thread_id", &fromComments).Error
	if err != nil {
		return nil, errors.Wrap(err, "find flagged comments")
	}
	var fromThreads []uint64
	err = db.Model(&threadRow{}).
		Joins("JOIN abuse_flaggers ON abuse_flaggers.content_type = ? AND abuse_flaggers.content_id = comment_threads.id", forum.ContentTypeThread).
		Where("comment_threads.course_id = ?", courseID).
		Distinct().Pluck("comment_threads.id", &fromThreads).Error
	if err != nil {
		return nil, errors.Wrap(err, "find flagged threads")
	}
	for _, pk := range fromComments {
		set[pk] = struct{}{}
	}
	for _, pk := range fromThreads {
		set[pk] = struct{}{}
	}
	pks := make([]uint64, 0, len(set))
	for pk := range set {
		pks = append(pks, pk)
	}
	return pks, nil
}

// presentThreads computes the bulk presentation annotations for one page.
// An empty page short-circuits without touching the stores.
func (s *Store) presentThreads(ctx context.Context, rows []threadRow, userID, courseID string, countFlagged bool) ([]*forum.AnnotatedThread, error) {
	if len(rows) == 0 {
		return []*forum.AnnotatedThread{}, nil
	}
	threads, err := s.threadsToModels(ctx, rows)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}

	readStates := map[string]forum.ThreadReadState{}
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
