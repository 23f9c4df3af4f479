package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursetalk/internal/forum"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "forum.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := New(db)
	require.NoError(t, err)
	return store
}

func seedUser(t *testing.T, s *Store, id, username string) *forum.User {
	t.Helper()
	user, err := s.FindOrCreateUser(context.Background(), id, username, username+"@example.com")
	require.NoError(t, err)
	return user
}

type threadOpt func(*forum.ThreadFields)

func asQuestion(f *forum.ThreadFields)  { f.ThreadType = forum.ThreadTypeQuestion }
func asAnonymous(f *forum.ThreadFields) { f.Anonymous = true }

func withGroup(id int) threadOpt {
	return func(f *forum.ThreadFields) { f.GroupID = &id }
}

func withCommentable(id string) threadOpt {
	return func(f *forum.ThreadFields) { f.CommentableID = id }
}

func seedThread(t *testing.T, s *Store, courseID string, author *forum.User, title string, opts ...threadOpt) string {
	t.Helper()
	fields := forum.ThreadFields{
		CourseID:       courseID,
		CommentableID:  "course",
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Title:          title,
		Body:           title + " body",
		ThreadType:     forum.ThreadTypeDiscussion,
		Context:        forum.ContextCourse,
	}
	for _, opt := range opts {
		opt(&fields)
	}
	id, err := s.InsertThread(context.Background(), fields)
	require.NoError(t, err)
	return id
}

func seedComment(t *testing.T, s *Store, threadID, parentID, courseID string, author *forum.User, body string) string {
	t.Helper()
	id, err := s.InsertComment(context.Background(), forum.CommentFields{
		ThreadID:       threadID,
		ParentID:       parentID,
		CourseID:       courseID,
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Body:           body,
	})
	require.NoError(t, err)
	return id
}

// setThreadCreatedAt pins the row timestamps so ordering tests do not depend
// on insertion speed.
func setThreadCreatedAt(t *testing.T, s *Store, id string, at time.Time) {
	t.Helper()
	pk, ok := parsePK(id)
	require.True(t, ok)
	err := s.db.Model(&threadRow{}).Where("id = ?", pk).
		UpdateColumns(map[string]interface{}{"created_at": at, "last_activity_at": at}).Error
	require.NoError(t, err)
}
