package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursetalk/internal/forum"
)

func (s *Store) findOrCreateStatRow(ctx context.Context, userID, courseID string) error {
	row := courseStatRow{UserID: userID, CourseID: courseID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	return errors.Wrap(err, "ensure course stat")
}

// UpdateStatsForCourse applies the deltas atomically to the (user, course)
// row, creating a zeroed row first if absent, then rebuilds the row from
// source data. The rebuild overwrites the delta; it is kept because the
// rebuild is idempotent and the final state is the authoritative one.
func (s *Store) UpdateStatsForCourse(ctx context.Context, userID, courseID string, deltas map[string]int) error {
	if err := s.findOrCreateStatRow(ctx, userID, courseID); err != nil {
		return err
	}
	if len(deltas) > 0 {
		changes := map[string]interface{}{"last_activity_at": time.Now().UTC()}
		for field, d := range deltas {
			switch field {
			case forum.StatThreads, forum.StatResponses, forum.StatReplies,
				forum.StatActiveFlags, forum.StatInactiveFlags:
				changes[field] = gorm.Expr(field+" + ?", d)
			default:
				return forum.InvalidArgumentf("stats field %q", field)
			}
		}
		err := s.db.WithContext(ctx).Model(&courseStatRow{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			UpdateColumns(changes).Error
		if err != nil {
			return errors.Wrap(err, "apply stats delta")
		}
	}
	_, err := s.BuildCourseStats(ctx, userID, courseID)
	return err
}

// BuildCourseStats recomputes the row from all non-anonymous content the
// author wrote in the course. Idempotent; concurrent rebuilds of the same
// pair race last-writer-wins.
func (s *Store) BuildCourseStats(ctx context.Context, authorID, courseID string) (*forum.CourseStats, error) {
	db := s.db.WithContext(ctx)
	visible := "author_id = ? AND course_id = ? AND anonymous = ? AND anonymous_to_peers = ?"

	var threads int64
	if err := db.Model(&threadRow{}).Where(visible, authorID, courseID, false, false).
		Count(&threads).Error; err != nil {
		return nil, errors.Wrap(err, "count threads")
	}
	var responses int64
	if err := db.Model(&commentRow{}).Where(visible, authorID, courseID, false, false).
		Where("parent_id IS NULL").Count(&responses).Error; err != nil {
		return nil, errors.Wrap(err, "count responses")
	}
	var replies int64
	if err := db.Model(&commentRow{}).Where(visible, authorID, courseID, false, false).
		Where("parent_id IS NOT NULL").Count(&replies).Error; err != nil {
		return nil, errors.Wrap(err, "count replies")
	}

	countFlagged := func(model interface{}, table, flaggerTable string) (int64, error) {
		var n int64
		err := db.Model(model).Where(visible, authorID, courseID, false, false).
			Where("EXISTS (SELECT 1 FROM "+flaggerTable+" f WHERE f.content_type = ? AND f.content_id = "+table+".id)",
				contentTypeForTable(table)).
			Count(&n).Error
		return n, err
	}
	activeThreads, err := countFlagged(&threadRow{}, "comment_threads", "abuse_flaggers")
	if err != nil {
		return nil, errors.Wrap(err, "count flagged threads")
	}
	activeComments, err := countFlagged(&commentRow{}, "comments", "abuse_flaggers")
	if err != nil {
		return nil, errors.Wrap(err, "count flagged comments")
	}
	inactiveThreads, err := countFlagged(&threadRow{}, "comment_threads", "historical_abuse_flaggers")
	if err != nil {
		return nil, errors.Wrap(err, "count historically flagged threads")
	}
	inactiveComments, err := countFlagged(&commentRow{}, "comments", "historical_abuse_flaggers")
	if err != nil {
		return nil, errors.Wrap(err, "count historically flagged comments")
	}

	var lastThread, lastComment sql.NullTime
	if err := db.Model(&threadRow{}).Where(visible, authorID, courseID, false, false).
		Select("MAX(updated_at)").Scan(&lastThread).Error; err != nil {
		return nil, errors.Wrap(err, "max thread activity")
	}
	if err := db.Model(&commentRow{}).Where(visible, authorID, courseID, false, false).
		Select("MAX(updated_at)").Scan(&lastComment).Error; err != nil {
		return nil, errors.Wrap(err, "max comment activity")
	}
	var lastActivity *time.Time
	if lastThread.Valid {
		t := lastThread.Time
		lastActivity = &t
	}
	if lastComment.Valid && (lastActivity == nil || lastComment.Time.After(*lastActivity)) {
		t := lastComment.Time
		lastActivity = &t
	}

	row := courseStatRow{
		UserID:         authorID,
		CourseID:       courseID,
		Threads:        int(threads),
		Responses:      int(responses),
		Replies:        int(replies),
		ActiveFlags:    int(activeThreads + activeComments),
		InactiveFlags:  int(inactiveThreads + inactiveComments),
		LastActivityAt: lastActivity,
	}
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"threads", "responses", "replies", "active_flags", "inactive_flags", "last_activity_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "store course stats")
	}

	username := ""
	var user userRow
	if err := db.First(&user, "id = ?", authorID).Error; err == nil {
		username = user.Username
	}
	return &forum.CourseStats{
		Username:       username,
		CourseID:       courseID,
		Threads:        row.Threads,
		Responses:      row.Responses,
		Replies:        row.Replies,
		ActiveFlags:    row.ActiveFlags,
		InactiveFlags:  row.InactiveFlags,
		LastActivityAt: row.LastActivityAt,
	}, nil
}

func contentTypeForTable(table string) string {
	if table == "comments" {
		return forum.ContentTypeComment
	}
	return forum.ContentTypeThread
}

// UpdateAllUsersInCourse rebuilds stats for every distinct non-anonymous
// content author in the course and returns their ids.
func (s *Store) UpdateAllUsersInCourse(ctx context.Context, courseID string) ([]string, error) {
	db := s.db.WithContext(ctx)
	authorSet := map[string]struct{}{}
	for _, model := range []interface{}{&threadRow{}, &commentRow{}} {
		var ids []string
		err := db.Model(model).
			Where("course_id = ? AND anonymous = ? AND anonymous_to_peers = ?", courseID, false, false).
			Distinct().Pluck("author_id", &ids).Error
		if err != nil {
			return nil, errors.Wrap(err, "list course authors")
		}
		for _, id := range ids {
			authorSet[id] = struct{}{}
		}
	}
	authors := make([]string, 0, len(authorSet))
	for id := range authorSet {
		authors = append(authors, id)
	}
	for _, id := range authors {
		if _, err := s.BuildCourseStats(ctx, id, courseID); err != nil {
			return nil, err
		}
	}
	return authors, nil
}

// GetUserStats lists per-user stats for a course with exact pagination.
func (s *Store) GetUserStats(ctx context.Context, courseID string, q forum.UserStatsQuery) (*forum.UserStatsPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	perPage := q.PerPage
	if perPage < 1 {
		perPage = 100
	}

	base := s.db.WithContext(ctx).Model(&courseStatRow{}).
		Joins("JOIN forum_users ON forum_users.id = course_stats.user_id").
		Where("course_stats.course_id = ?", courseID)
	if len(q.Usernames) > 0 {
		base = base.Where("forum_users.username IN ?", q.Usernames)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "count user stats")
	}

	var order string
	switch q.SortKey {
	case forum.UserStatsSortFlagged:
		order = "course_stats.active_flags DESC, course_stats.inactive_flags DESC, forum_users.username ASC"
	case forum.UserStatsSortRecency:
		order = "course_stats.last_activity_at DESC, forum_users.username ASC"
	default:
		order = "course_stats.threads DESC, course_stats.responses DESC, course_stats.replies DESC, forum_users.username ASC"
	}

	type statWithUser struct {
		courseStatRow
		Username string
	}
	var rows []statWithUser
	err := base.Select("course_stats.*, forum_users.username AS username").
		Order(order).
		Offset((page - 1) * perPage).Limit(perPage).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "list user stats")
	}

	stats := make([]*forum.CourseStats, len(rows))
	for i, r := range rows {
		stats[i] = &forum.CourseStats{
			Username:       r.Username,
			CourseID:       r.CourseID,
			Threads:        r.Threads,
			Responses:      r.Responses,
			Replies:        r.Replies,
			ActiveFlags:    r.ActiveFlags,
			InactiveFlags:  r.InactiveFlags,
			LastActivityAt: r.LastActivityAt,
		}
	}
	return &forum.UserStatsPage{
		Stats:    stats,
		Page:     page,
		NumPages: forum.NumPages(total, perPage),
		Count:    total,
	}, nil
}
