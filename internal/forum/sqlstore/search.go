package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"coursetalk/internal/forum"
)

// threadIndexRow carries a thread row plus its aggregated vote point for
// search indexing.
type threadIndexRow struct {
	threadRow
	VotesPoint int `gorm:"column:votes_point"`
}

// StreamSearchDocuments streams every thread and comment in indexable form,
// restricted to rows updated at or after since when since is non-nil.
func (s *Store) StreamSearchDocuments(ctx context.Context, since *time.Time, fn func(forum.SearchDocument) error) error {
	db := s.db.WithContext(ctx)

	threadQuery := db.Model(&threadRow{}).
		Select("comment_threads.*, (SELECT COALESCE(SUM(v.vote), 0) FROM user_votes v" +
			" WHERE v.content_type = 'CommentThread' AND v.content_id = comment_threads.id) AS votes_point").
		Order("comment_threads.id ASC")
	if since != nil {
		threadQuery = threadQuery.Where("comment_threads.updated_at >= ?", *since)
	}
	rows, err := threadQuery.Rows()
	if err != nil {
		return errors.Wrap(err, "stream threads for index")
	}
	defer rows.Close()
	for rows.Next() {
		var r threadIndexRow
		if err := db.ScanRows(rows, &r); err != nil {
			return errors.Wrap(err, "scan thread for index")
		}
		lastActivity := r.LastActivityAt
		if err := fn(forum.SearchDocument{
			ID:             formatPK(r.ID),
			ContentType:    forum.ContentTypeThread,
			CourseID:       r.CourseID,
			CommentableID:  r.CommentableID,
			Context:        r.Context,
			GroupID:        r.GroupID,
			AuthorID:       r.AuthorID,
			Title:          r.Title,
			Body:           r.Body,
			CommentCount:   r.CommentCount,
			VotesPoint:     r.VotesPoint,
			LastActivityAt: &lastActivity,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "stream threads for index")
	}

	commentQuery := db.Model(&commentRow{}).Order("comments.id ASC")
	if since != nil {
		commentQuery = commentQuery.Where("comments.updated_at >= ?", *since)
	}
	crows, err := commentQuery.Rows()
	if err != nil {
		return errors.Wrap(err, "stream comments for index")
	}
	defer crows.Close()
	for crows.Next() {
		var r commentRow
		if err := db.ScanRows(crows, &r); err != nil {
			return errors.Wrap(err, "scan comment for index")
		}
		if err := fn(forum.SearchDocument{
			ID:          formatPK(r.ID),
			ContentType: forum.ContentTypeComment,
			ThreadID:    formatPK(r.ThreadID),
			CourseID:    r.CourseID,
			AuthorID:    r.AuthorID,
			Body:        r.Body,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		}); err != nil {
			return err
		}
	}
	return errors.Wrap(crows.Err(), "stream comments for index")
}
