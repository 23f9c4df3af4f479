package api

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func TestCreateThreadDefaultsAndIndexing(t *testing.T) {
	svc, engine := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	thread, err := svc.CreateThread(ctx, CreateThreadRequest{
		Title:    "Welcome",
		Body:     "hello world",
		CourseID: "course-1",
		UserID:   alice.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, forum.ThreadTypeDiscussion, thread.ThreadType)
	assert.Equal(t, forum.ContextCourse, thread.Context)
	assert.Equal(t, "alice", thread.AuthorUsername)

	doc := engine.lastIndexed()
	require.NotNil(t, doc)
	assert.Equal(t, thread.ID, doc.ID)
	assert.Equal(t, forum.ContentTypeThread, doc.ContentType)
	assert.Equal(t, "Welcome", doc.Title)

	stats, err := svc.GetUserStats(ctx, "course-1", forum.UserStatsQuery{})
	require.NoError(t, err)
	require.Len(t, stats.Stats, 1)
	assert.Equal(t, 1, stats.Stats[0].Threads)
}

func TestCreateThreadSanitizesMarkup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	thread, err := svc.CreateThread(ctx, CreateThreadRequest{
		Title:    "<b>bold</b> title",
		Body:     `safe <script>alert(1)</script> body`,
		CourseID: "course-1",
		UserID:   alice.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "bold title", thread.Title)
	assert.NotContains(t, thread.Body, "script")
}

func TestCreateThreadAnonymousSkipsStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	_, err := svc.CreateThread(ctx, CreateThreadRequest{
		Title: "Secret", Body: "b", CourseID: "course-1", UserID: alice.ID,
		Anonymous: true,
	})
	require.NoError(t, err)

	stats, err := svc.GetUserStats(ctx, "course-1", forum.UserStatsQuery{})
	require.NoError(t, err)
	assert.Empty(t, stats.Stats)
}

func TestCreateThreadUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateThread(context.Background(), CreateThreadRequest{
		Title: "x", Body: "x", CourseID: "course-1", UserID: "ghost",
	})
	assert.True(t, errors.Is(err, forum.ErrNotFound))
}

func TestGetThreadMarksRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	bob := seedUser(t, svc, "2", "bob")

	thread := seedThread(t, svc, "course-1", alice.ID, "Read me")
	seedComment(t, svc, thread.ID, "course-1", alice.ID, "a response")

	unread, err := svc.GetThread(ctx, thread.ID, bob.ID, false)
	require.NoError(t, err)
	assert.False(t, unread.IsRead)
	assert.Equal(t, 1, unread.UnreadCommentCount)

	read, err := svc.GetThread(ctx, thread.ID, bob.ID, true)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.Equal(t, 0, read.UnreadCommentCount)
}

func TestUpdateThreadCloseRequiresReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	thread := seedThread(t, svc, "course-1", alice.ID, "Closable")

	closed := true
	_, err := svc.UpdateThread(ctx, thread.ID, forum.ThreadUpdate{Closed: &closed})
	assert.True(t, errors.Is(err, forum.ErrInvalidArgument))

	reason := "duplicate"
	updated, err := svc.UpdateThread(ctx, thread.ID, forum.ThreadUpdate{
		Closed: &closed, ClosedByID: &alice.ID, CloseReasonCode: &reason,
	})
	require.NoError(t, err)
	assert.True(t, updated.Closed)
}

func TestPinUnpinThread(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	thread := seedThread(t, svc, "course-1", alice.ID, "Pinnable")

	pinned, err := svc.PinThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.True(t, pinned.Pinned)

	unpinned, err := svc.UnpinThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.Pinned)
}

func TestDeleteThreadCascades(t *testing.T) {
	svc, engine := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	bob := seedUser(t, svc, "2", "bob")

	thread := seedThread(t, svc, "course-1", alice.ID, "Doomed")
	comment := seedComment(t, svc, thread.ID, "course-1", bob.ID, "a response")
	_, err := svc.Subscribe(ctx, bob.ID, thread.ID, "")
	require.NoError(t, err)

	snapshot, err := svc.DeleteThread(ctx, thread.ID)
	require.NoError(t, err)
	// The snapshot is taken after the comment cascade.
	assert.Equal(t, 0, snapshot.CommentCount)

	_, err = svc.GetThread(ctx, thread.ID, "", false)
	assert.True(t, errors.Is(err, forum.ErrNotFound))
	_, err = svc.GetComment(ctx, comment.ID)
	assert.True(t, errors.Is(err, forum.ErrNotFound))

	subs, err := svc.Backend().GetSubscribers(ctx, thread.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)

	// Thread and comment both leave the search index.
	assert.Contains(t, engine.deleted, thread.ID)
	assert.Contains(t, engine.deleted, comment.ID)

	stats, err := svc.GetUserStats(ctx, "course-1", forum.UserStatsQuery{})
	require.NoError(t, err)
	for _, st := range stats.Stats {
		assert.Equal(t, 0, st.Threads)
	}
}

func TestListThreadsScopedToCourse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	seedThread(t, svc, "course-1", alice.ID, "Here")
	seedThread(t, svc, "course-2", alice.ID, "Elsewhere")

	result, err := svc.ListThreads(ctx, ThreadListRequest{CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, result.Collection, 1)
	assert.Equal(t, "Here", result.Collection[0].Title)
}

func TestListSubscribedThreads(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	bob := seedUser(t, svc, "2", "bob")

	followed := seedThread(t, svc, "course-1", alice.ID, "Followed")
	seedThread(t, svc, "course-1", alice.ID, "Ignored")
	_, err := svc.Subscribe(ctx, bob.ID, followed.ID, "")
	require.NoError(t, err)

	result, err := svc.ListSubscribedThreads(ctx, bob.ID, ThreadListRequest{CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, result.Collection, 1)
	assert.Equal(t, "Followed", result.Collection[0].Title)
}
