package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursetalk/internal/forum"
)

// MarkAsRead records "now" as the user's last-read time for the thread,
// creating the per-(user, course) read state lazily.
func (s *Store) MarkAsRead(ctx context.Context, userID, threadID string) error {
	thread, err := s.getThreadRow(ctx, threadID)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)

	state := readStateRow{UserID: userID, CourseID: thread.CourseID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&state).Error; err != nil {
		return errors.Wrap(err, "ensure read state")
	}
	if state.ID == 0 {
		if err := db.Where("user_id = ? AND course_id = ?", userID, thread.CourseID).
			First(&state).Error; err != nil {
			return errors.Wrap(err, "load read state")
		}
	}

	now := time.Now().UTC()
	entry := lastReadTimeRow{ReadStateID: state.ID, ThreadID: thread.ID, Timestamp: now}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "read_state_id"}, {Name: "thread_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"timestamp": now}),
	}).Create(&entry).Error
	return errors.Wrap(err, "mark as read")
}

// GetReadStates bulk-annotates threads with (is_read, unread_comment_count)
// for the user. Threads the user never read are absent from the result;
// callers default those to (false, comment_count).
func (s *Store) GetReadStates(ctx context.Context, threadIDs []string, userID, courseID string) (map[string]forum.ThreadReadState, error) {
	states := map[string]forum.ThreadReadState{}
	pks := parsePKs(threadIDs)
	if len(pks) == 0 {
		return states, nil
	}
	db := s.db.WithContext(ctx)

	var state readStateRow
	err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return states, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load read state")
	}

	var entries []lastReadTimeRow
	err = db.Where("read_state_id = ? AND thread_id IN ?", state.ID, pks).Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "load last read times")
	}
	if len(entries) == 0 {
		return states, nil
	}

	var threads []threadRow
	if err := db.Where("id IN ?", pks).Find(&threads).Error; err != nil {
		return nil, errors.Wrap(err, "load threads")
	}
	threadByID := map[uint64]threadRow{}
	for _, t := range threads {
		threadByID[t.ID] = t
	}

	for _, entry := range entries {
		thread, ok := threadByID[entry.ThreadID]
		if !ok {
			continue
		}
		var unread int64
		err := db.Model(&commentRow{}).
			Where("thread_id = ? AND created_at >= ? AND author_id <> ?", entry.ThreadID, entry.Timestamp, userID).
			Count(&unread).Error
		if err != nil {
			return nil, errors.Wrap(err, "count unread comments")
		}
		states[formatPK(entry.ThreadID)] = forum.ThreadReadState{
			IsRead:             !entry.Timestamp.Before(thread.LastActivityAt),
			UnreadCommentCount: int(unread),
		}
	}
	return states, nil
}

// GetUserReadDates returns the user's thread-id → last-read-time map for a
// course, used by the streamed unread filter.
func (s *Store) GetUserReadDates(ctx context.Context, userID, courseID string) (map[string]time.Time, error) {
	dates := map[string]time.Time{}
	db := s.db.WithContext(ctx)

	var state readStateRow
	err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dates, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load read state")
	}

	var entries []lastReadTimeRow
	if err := db.Where("read_state_id = ?", state.ID).Find(&entries).Error; err != nil {
		return nil, errors.Wrap(err, "load last read times")
	}
	for _, e := range entries {
		dates[formatPK(e.ThreadID)] = e.Timestamp
	}
	return dates, nil
}
