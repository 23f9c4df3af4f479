package sqlstore

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursetalk/internal/forum"
)

func (s *Store) contentMeta(ctx context.Context, contentType string, pk uint64) (authorID, courseID string, err error) {
	switch contentType {
	case forum.ContentTypeThread:
		var row threadRow
		if err = s.db.WithContext(ctx).Select("author_id", "course_id").First(&row, pk).Error; err == nil {
			return row.AuthorID, row.CourseID, nil
		}
	case forum.ContentTypeComment:
		var row commentRow
		if err = s.db.WithContext(ctx).Select("author_id", "course_id").First(&row, pk).Error; err == nil {
			return row.AuthorID, row.CourseID, nil
		}
	default:
		return "", "", forum.InvalidArgumentf("content type %q", contentType)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", forum.NotFoundf("%s %d", contentType, pk)
	}
	return "", "", errors.Wrap(err, "get content")
}

func (s *Store) countFlaggers(ctx context.Context, contentType string, pk uint64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&abuseFlaggerRow{}).
		Where("content_type = ? AND content_id = ?", contentType, pk).Count(&n).Error
	return n, errors.Wrap(err, "count flaggers")
}

func (s *Store) countHistoricalFlaggers(ctx context.Context, contentType string, pk uint64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&historicalAbuseFlaggerRow{}).
		Where("content_type = ? AND content_id = ?", contentType, pk).Count(&n).Error
	return n, errors.Wrap(err, "count historical flaggers")
}

// FlagAsAbuse adds the user to the content's flagger set; the very first
// flagger bumps the author's active_flags.
func (s *Store) FlagAsAbuse(ctx context.Context, contentType, contentID, userID string) error {
	pk, ok := parsePK(contentID)
	if !ok {
		return forum.NotFoundf("%s %q", contentType, contentID)
	}
	authorID, courseID, err := s.contentMeta(ctx, contentType, pk)
	if err != nil {
		return err
	}

	row := abuseFlaggerRow{UserID: userID, ContentType: contentType, ContentID: pk}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return errors.Wrap(res.Error, "add abuse flagger")
	}
	if res.RowsAffected == 0 {
		// Flagging twice is a no-op, not an error.
		return nil
	}

	n, err := s.countFlaggers(ctx, contentType, pk)
	if err != nil {
		return err
	}
	if n == 1 {
		return s.UpdateStatsForCourse(ctx, authorID, courseID, map[string]int{forum.StatActiveFlags: 1})
	}
	return nil
}

// updateStatsAfterUnflag applies the active/inactive deltas after a flagger
// set mutation, re-reading the post-mutation state.
func (s *Store) updateStatsAfterUnflag(ctx context.Context, authorID, courseID, contentType string, pk uint64, hadNoHistoricalFlags bool) error {
	historical, err := s.countHistoricalFlaggers(ctx, contentType, pk)
	if err != nil {
		return err
	}
	if hadNoHistoricalFlags && historical == 0 {
		if err := s.UpdateStatsForCourse(ctx, authorID, courseID, map[string]int{forum.StatInactiveFlags: 1}); err != nil {
			return err
		}
	}
	active, err := s.countFlaggers(ctx, contentType, pk)
	if err != nil {
		return err
	}
	if active == 0 {
		return s.UpdateStatsForCourse(ctx, authorID, courseID, map[string]int{forum.StatActiveFlags: -1})
	}
	return nil
}

func (s *Store) UnflagAsAbuse(ctx context.Context, contentType, contentID, userID string) error {
	pk, ok := parsePK(contentID)
	if !ok {
		return forum.NotFoundf("%s %q", contentType, contentID)
	}
	authorID, courseID, err := s.contentMeta(ctx, contentType, pk)
	if err != nil {
		return err
	}
	historical, err := s.countHistoricalFlaggers(ctx, contentType, pk)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, pk).
		Delete(&abuseFlaggerRow{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "remove abuse flagger")
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return s.updateStatsAfterUnflag(ctx, authorID, courseID, contentType, pk, historical == 0)
}

// UnflagAllAsAbuse moves the whole current flagger set into the historical
// set (union, not overwrite) and empties the current set.
func (s *Store) UnflagAllAsAbuse(ctx context.Context, contentType, contentID string) error {
	pk, ok := parsePK(contentID)
	if !ok {
		return forum.NotFoundf("%s %q", contentType, contentID)
	}
	authorID, courseID, err := s.contentMeta(ctx, contentType, pk)
	if err != nil {
		return err
	}
	historical, err := s.countHistoricalFlaggers(ctx, contentType, pk)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []abuseFlaggerRow
		if err := tx.Where("content_type = ? AND content_id = ?", contentType, pk).Find(&current).Error; err != nil {
			return err
		}
		for _, f := range current {
			row := historicalAbuseFlaggerRow{UserID: f.UserID, ContentType: contentType, ContentID: pk}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}
		return tx.Where("content_type = ? AND content_id = ?", contentType, pk).
			Delete(&abuseFlaggerRow{}).Error
	})
	if err != nil {
		return errors.Wrap(err, "unflag all")
	}
	return s.updateStatsAfterUnflag(ctx, authorID, courseID, contentType, pk, historical == 0)
}

// GetAbuseFlaggedCount counts flagged comments per thread.
func (s *Store) GetAbuseFlaggedCount(ctx context.Context, threadIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	pks := parsePKs(threadIDs)
	if len(pks) == 0 {
		return counts, nil
	}
	type bucket struct {
		ThreadID uint64
		N        int
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).Model(&commentRow{}).
		Select("comments.thread_id AS thread_id, COUNT(DISTINCT comments.id) AS n").
		Joins("JOIN abuse_flaggers ON abuse_flaggers.content_type = ? AND abuse_flaggers.content_id = comments.id", forum.ContentTypeComment).
		Where("comments.thread_id IN ?", pks).
		Group("comments.thread_id").
		Scan(&buckets).Error
	if err != nil {
		return nil, errors.Wrap(err, "count flagged comments")
	}
	for _, b := range buckets {
		counts[formatPK(b.ThreadID)] = b.N
	}
	return counts, nil
}
