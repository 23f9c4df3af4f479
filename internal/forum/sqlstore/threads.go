package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

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
	row := threadRow{
		CourseID:         f.CourseID,
		CommentableID:    f.CommentableID,
		AuthorID:         f.AuthorID,
		AuthorUsername:   f.AuthorUsername,
		Title:            f.Title,
		Body:             f.Body,
		ThreadType:       f.ThreadType,
		Context:          f.Context,
		Anonymous:        f.Anonymous,
		AnonymousToPeers: f.AnonymousToPeers,
		Visible:          true,
		GroupID:          f.GroupID,
		LastActivityAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", errors.Wrap(err, "insert thread")
	}
	return formatPK(row.ID), nil
}

func (s *Store) getThreadRow(ctx context.Context, id string) (*threadRow, error) {
	pk, ok := parsePK(id)
	if !ok {
		return nil, forum.NotFoundf("thread %q", id)
	}
	var row threadRow
	err := s.db.WithContext(ctx).First(&row, pk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, forum.NotFoundf("thread %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get thread")
	}
	return &row, nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*forum.Thread, error) {
	row, err := s.getThreadRow(ctx, id)
	if err != nil {
		return nil, err
	}
	threads, err := s.threadsToModels(ctx, []threadRow{*row})
	if err != nil {
		return nil, err
	}
	return threads[0], nil
}

func (s *Store) GetThreadsByIDs(ctx context.Context, ids []string) ([]*forum.Thread, error) {
	pks := parsePKs(ids)
	if len(pks) == 0 {
		return []*forum.Thread{}, nil
	}
	var rows []threadRow
	if err := s.db.WithContext(ctx).Where("id IN ?", pks).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "get threads")
	}
	return s.threadsToModels(ctx, rows)
}

func (s *Store) UpdateThread(ctx context.Context, id string, u forum.ThreadUpdate) (int64, error) {
	row, err := s.getThreadRow(ctx, id)
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if u.ThreadType != nil && !forum.ValidThreadType(*u.ThreadType) {
		return 0, forum.InvalidArgumentf("thread_type %q", *u.ThreadType)
	}

	changes := map[string]interface{}{}
	if u.Title != nil {
		changes["title"] = *u.Title
	}
	if u.Body != nil && *u.Body != row.Body {
		changes["body"] = *u.Body
		if u.EditingUserID != "" {
			edit := editHistoryRow{
				ContentType:    forum.ContentTypeThread,
				ContentID:      row.ID,
				EditorID:       u.EditingUserID,
				EditorUsername: u.EditingUserUsername,
				OriginalBody:   row.Body,
				ReasonCode:     u.EditReasonCode,
			}
			if err := s.db.WithContext(ctx).Create(&edit).Error; err != nil {
				return 0, errors.Wrap(err, "append edit history")
			}
		}
	}
	if u.CommentableID != nil {
		changes["commentable_id"] = *u.CommentableID
	}
	if u.ThreadType != nil {
		changes["thread_type"] = *u.ThreadType
	}
	if u.Anonymous != nil {
		changes["anonymous"] = *u.Anonymous
	}
	if u.AnonymousToPeers != nil {
		changes["anonymous_to_peers"] = *u.AnonymousToPeers
	}
	if u.Pinned != nil {
		changes["pinned"] = *u.Pinned
	}
	if u.Visible != nil {
		changes["visible"] = *u.Visible
	}
	if u.Closed != nil {
		changes["closed"] = *u.Closed
		if *u.Closed {
			if u.ClosedByID != nil {
				changes["closed_by_id"] = *u.ClosedByID
			}
			if u.CloseReasonCode != nil {
				changes["close_reason_code"] = *u.CloseReasonCode
			}
		} else {
			// Reopening clears the close bookkeeping.
			changes["closed_by_id"] = ""
			changes["close_reason_code"] = ""
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&threadRow{}).Where("id = ?", row.ID).Updates(changes)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "update thread")
	}
	return res.RowsAffected, nil
}

// DeleteThread removes the thread row and its last-read entries. Comment and
// subscription cascades are driven by the caller.
func (s *Store) DeleteThread(ctx context.Context, id string) (int64, error) {
	pk, ok := parsePK(id)
	if !ok {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", pk).Delete(&lastReadTimeRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("content_type = ? AND content_id = ?", forum.ContentTypeThread, pk).
			Delete(&userVoteRow{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&threadRow{}, pk)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete thread")
	}
	return deleted, nil
}

// GetCourseThreadIDs lists the candidate thread ids of a course, optionally
// restricted to the given commentables.
func (s *Store) GetCourseThreadIDs(ctx context.Context, courseID string, commentableIDs []string) ([]string, error) {
	query := s.db.WithContext(ctx).Model(&threadRow{}).Where("course_id = ?", courseID)
	if len(commentableIDs) > 0 {
		query = query.Where("commentable_id IN ?", commentableIDs)
	}
	var pks []uint64
	if err := query.Pluck("id", &pks).Error; err != nil {
		return nil, errors.Wrap(err, "list course threads")
	}
	ids := make([]string, len(pks))
	for i, pk := range pks {
		ids[i] = formatPK(pk)
	}
	return ids, nil
}

func (s *Store) FilterStandaloneThreadIDs(ctx context.Context, ids []string) ([]string, error) {
	pks := parsePKs(ids)
	if len(pks) == 0 {
		return []string{}, nil
	}
	var kept []uint64
	err := s.db.WithContext(ctx).Model(&threadRow{}).
		Where("id IN ? AND context <> ?", pks, forum.ContextStandalone).
		Pluck("id", &kept).Error
	if err != nil {
		return nil, errors.Wrap(err, "filter standalone threads")
	}
	out := make([]string, len(kept))
	for i, pk := range kept {
		out[i] = formatPK(pk)
	}
	return out, nil
}

func (s *Store) GetCourseIDByThread(ctx context.Context, threadID string) (string, error) {
	row, err := s.getThreadRow(ctx, threadID)
	if err != nil {
		return "", err
	}
	return row.CourseID, nil
}

func (s *Store) GetCourseIDByComment(ctx context.Context, commentID string) (string, error) {
	row, err := s.getCommentRow(ctx, commentID)
	if err != nil {
		return "", err
	}
	return row.CourseID, nil
}

func (s *Store) GetCommentablesCounts(ctx context.Context, courseID string) (map[string]forum.CommentableCounts, error) {
	type bucket struct {
		CommentableID string
		ThreadType    string
		N             int
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).Model(&threadRow{}).
		Select("commentable_id, thread_type, COUNT(*) AS n").
		Where("course_id = ?", courseID).
		Group("commentable_id, thread_type").
		Scan(&buckets).Error
	if err != nil {
		return nil, errors.Wrap(err, "count commentables")
	}
	counts := map[string]forum.CommentableCounts{}
	for _, b := range buckets {
		c := counts[b.CommentableID]
		switch b.ThreadType {
		case forum.ThreadTypeQuestion:
			c.Question = b.N
		case forum.ThreadTypeDiscussion:
			c.Discussion = b.N
		}
		counts[b.CommentableID] = c
	}
	return counts, nil
}

func (s *Store) GetEndorsedThreadIDs(ctx context.Context, threadIDs []string) (map[string]bool, error) {
	endorsed := map[string]bool{}
	pks := parsePKs(threadIDs)
	if len(pks) == 0 {
		return endorsed, nil
	}
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&commentRow{}).
		Where("thread_id IN ? AND parent_id IS NULL AND endorsed = ?", pks, true).
		Distinct().Pluck("thread_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "find endorsed threads")
	}
	for _, id := range ids {
		endorsed[formatPK(id)] = true
	}
	return endorsed, nil
}
