package api

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursetalk/internal/forum"
	"coursetalk/internal/forum/sqlstore"
	"coursetalk/internal/search"
)

// recordingEngine is a programmable search engine that records index
// mutations and serves canned hits per query text.
type recordingEngine struct {
	search.Disabled
	hits        map[string][]string
	suggestions map[string]string
	indexed     []forum.SearchDocument
	deleted     []string
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{
		hits:        map[string][]string{},
		suggestions: map[string]string{},
	}
}

func (e *recordingEngine) GetThreadIDs(_ context.Context, q search.ThreadQuery) ([]string, error) {
	return e.hits[q.Text], nil
}

func (e *recordingEngine) GetSuggestedText(_ context.Context, text string, _ []string) (string, error) {
	return e.suggestions[text], nil
}

func (e *recordingEngine) IndexDocument(_ context.Context, doc forum.SearchDocument) error {
	e.indexed = append(e.indexed, doc)
	return nil
}

func (e *recordingEngine) DeleteDocument(_ context.Context, _, id string) error {
	e.deleted = append(e.deleted, id)
	return nil
}

func (e *recordingEngine) lastIndexed() *forum.SearchDocument {
	if len(e.indexed) == 0 {
		return nil
	}
	return &e.indexed[len(e.indexed)-1]
}

func newTestService(t *testing.T) (*Service, *recordingEngine) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "forum.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := sqlstore.New(db)
	require.NoError(t, err)
	engine := newRecordingEngine()
	return NewService(store, engine), engine
}

func seedUser(t *testing.T, svc *Service, id, username string) *forum.User {
	t.Helper()
	user, err := svc.FindOrCreateUser(context.Background(), id, username, username+"@example.com")
	require.NoError(t, err)
	return user
}

func seedThread(t *testing.T, svc *Service, courseID, userID, title string) *forum.Thread {
	t.Helper()
	thread, err := svc.CreateThread(context.Background(), CreateThreadRequest{
		Title:    title,
		Body:     title + " body",
		CourseID: courseID,
		UserID:   userID,
	})
	require.NoError(t, err)
	return thread
}

func seedComment(t *testing.T, svc *Service, threadID, courseID, userID, body string) *forum.Comment {
	t.Helper()
	comment, err := svc.CreateComment(context.Background(), CreateCommentRequest{
		ThreadID: threadID,
		Body:     body,
		CourseID: courseID,
		UserID:   userID,
	})
	require.NoError(t, err)
	return comment
}
