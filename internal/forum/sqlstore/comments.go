package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"coursetalk/internal/forum"
)

const maxCommentDepth = 1

func (s *Store) getCommentRow(ctx context.Context, id string) (*commentRow, error) {
	pk, ok := parsePK(id)
	if !ok {
		return nil, forum.NotFoundf("comment %q", id)
	}
	var row commentRow
	err := s.db.WithContext(ctx).First(&row, pk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, forum.NotFoundf("comment %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get comment")
	}
	return &row, nil
}

func (s *Store) InsertComment(ctx context.Context, f forum.CommentFields) (string, error) {
	thread, err := s.getThreadRow(ctx, f.ThreadID)
	if err != nil {
		return "", err
	}

	var parent *commentRow
	depth := 0
	if f.ParentID != "" {
		parent, err = s.getCommentRow(ctx, f.ParentID)
		if err != nil {
			return "", err
		}
		depth = parent.Depth + 1
		if depth > maxCommentDepth {
			return "", forum.InvalidArgumentf("comment nesting deeper than %d", maxCommentDepth)
		}
	}

	now := time.Now().UTC()
	row := commentRow{
		ThreadID:         thread.ID,
		Depth:            depth,
		CourseID:         thread.CourseID,
		AuthorID:         f.AuthorID,
		AuthorUsername:   f.AuthorUsername,
		Body:             f.Body,
		Anonymous:        f.Anonymous,
		AnonymousToPeers: f.AnonymousToPeers,
		Visible:          true,
	}
	if parent != nil {
		row.ParentID = &parent.ID
	}

	// The comment, the parent child_count and the thread counters land in
	// one transaction so no reader sees the comment without the counters.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if parent != nil {
			if err := tx.Model(&commentRow{}).Where("id = ?", parent.ID).
				UpdateColumn("child_count", gorm.Expr("child_count + 1")).Error; err != nil {
				return err
			}
		}
		return tx.Model(&threadRow{}).Where("id = ?", thread.ID).
			UpdateColumns(map[string]interface{}{
				"comment_count":    gorm.Expr("comment_count + 1"),
				"last_activity_at": now,
			}).Error
	})
	if err != nil {
		return "", errors.Wrap(err, "insert comment")
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
	return formatPK(row.ID), nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*forum.Comment, error) {
	row, err := s.getCommentRow(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.commentsToModels(ctx, []commentRow{*row})
	if err != nil {
		return nil, err
	}
	return comments[0], nil
}

func (s *Store) GetThreadComments(ctx context.Context, threadID string) ([]*forum.Comment, error) {
	pk, ok := parsePK(threadID)
	if !ok {
		return []*forum.Comment{}, nil
	}
	var rows []commentRow
	err := s.db.WithContext(ctx).Where("thread_id = ?", pk).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "get thread comments")
	}
	return s.commentsToModels(ctx, rows)
}

func (s *Store) UpdateComment(ctx context.Context, id string, u forum.CommentUpdate) (int64, error) {
	row, err := s.getCommentRow(ctx, id)
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	changes := map[string]interface{}{}
	if u.Body != nil && *u.Body != row.Body {
		changes["body"] = *u.Body
		if u.EditingUserID != "" {
			edit := editHistoryRow{
				ContentType:    forum.ContentTypeComment,
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
	if u.Anonymous != nil {
		changes["anonymous"] = *u.Anonymous
	}
	if u.Visible != nil {
		changes["visible"] = *u.Visible
	}
	if u.Endorsed != nil {
		changes["endorsed"] = *u.Endorsed
		if *u.Endorsed && u.EndorsementUserID != "" {
			changes["endorsement_user_id"] = u.EndorsementUserID
			changes["endorsement_at"] = time.Now().UTC()
		} else {
			changes["endorsement_user_id"] = ""
			changes["endorsement_at"] = nil
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&commentRow{}).Where("id = ?", row.ID).Updates(changes)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "update comment")
	}
	return res.RowsAffected, nil
}

// DeleteComment removes a comment and, for depth-0 comments, its replies;
// the owning thread's comment_count drops by the total removed and its
// last_activity_at is bumped. Returns the number of comments removed.
func (s *Store) DeleteComment(ctx context.Context, id string) (int64, error) {
	row, err := s.getCommentRow(ctx, id)
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	now := time.Now().UTC()
	var removed int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed = 1
		if row.Depth == 0 {
			res := tx.Where("parent_id = ?", row.ID).Delete(&commentRow{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		} else if row.ParentID != nil {
			if err := tx.Model(&commentRow{}).Where("id = ?", *row.ParentID).
				UpdateColumn("child_count", gorm.Expr("child_count - 1")).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&commentRow{}, row.ID).Error; err != nil {
			return err
		}
		return tx.Model(&threadRow{}).Where("id = ?", row.ThreadID).
			UpdateColumns(map[string]interface{}{
				"comment_count":    gorm.Expr("comment_count - ?", removed),
				"last_activity_at": now,
			}).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete comment")
	}
	return removed, nil
}

func (s *Store) DeleteCommentsOfThread(ctx context.Context, threadID string) (int64, error) {
	pk, ok := parsePK(threadID)
	if !ok {
		return 0, nil
	}
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint64
		if err := tx.Model(&commentRow{}).Where("thread_id = ?", pk).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("content_type = ? AND content_id IN ?", forum.ContentTypeComment, ids).
			Delete(&userVoteRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("thread_id = ?", pk).Delete(&commentRow{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Model(&threadRow{}).Where("id = ?", pk).
			UpdateColumn("comment_count", 0).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete thread comments")
	}
	return removed, nil
}
