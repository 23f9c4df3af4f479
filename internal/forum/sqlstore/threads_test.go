package sqlstore

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func TestThreadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	id := seedThread(t, s, "course-1", alice, "First thread")
	thread, err := s.GetThread(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "First thread", thread.Title)
	assert.Equal(t, alice.ID, thread.AuthorID)
	assert.Equal(t, forum.ThreadTypeDiscussion, thread.ThreadType)
	assert.True(t, thread.Visible)
	assert.Equal(t, 0, thread.CommentCount)
	assert.Empty(t, thread.AbuseFlaggers)
	assert.Equal(t, 0, thread.Votes.Point)
}

func TestInsertThreadRejectsBadInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	_, err := s.InsertThread(ctx, forum.ThreadFields{
		CourseID: "course-1", AuthorID: alice.ID, Title: "x", Body: "x",
		ThreadType: "poll", Context: forum.ContextCourse,
	})
	assert.True(t, errors.Is(err, forum.ErrInvalidArgument))

	_, err = s.InsertThread(ctx, forum.ThreadFields{
		CourseID: "course-1", AuthorID: alice.ID, Title: "x", Body: "x",
		ThreadType: forum.ThreadTypeDiscussion, Context: "global",
	})
	assert.True(t, errors.Is(err, forum.ErrInvalidArgument))
}

func TestGetThreadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetThread(context.Background(), "999")
	assert.True(t, errors.Is(err, forum.ErrNotFound))

	_, err = s.GetThread(context.Background(), "not-a-pk")
	assert.True(t, errors.Is(err, forum.ErrNotFound))
}

func TestUpdateThreadEditHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	mod := seedUser(t, s, "2", "moderator")

	id := seedThread(t, s, "course-1", alice, "Editable")
	body := "revised body"
	n, err := s.UpdateThread(ctx, id, forum.ThreadUpdate{
		Body:                &body,
		EditingUserID:       mod.ID,
		EditingUserUsername: mod.Username,
		EditReasonCode:      "grammar",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	thread, err := s.GetThread(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "revised body", thread.Body)
	require.Len(t, thread.EditHistory, 1)
	assert.Equal(t, "Editable body", thread.EditHistory[0].OriginalBody)
	assert.Equal(t, mod.ID, thread.EditHistory[0].EditorID)
	assert.Equal(t, "grammar", thread.EditHistory[0].ReasonCode)
}

func TestUpdateThreadSameBodyNoHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	id := seedThread(t, s, "course-1", alice, "Stable")
	body := "Stable body"
	_, err := s.UpdateThread(ctx, id, forum.ThreadUpdate{Body: &body, EditingUserID: alice.ID})
	require.NoError(t, err)

	thread, err := s.GetThread(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, thread.EditHistory)
}

func TestCloseAndReopenThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	mod := seedUser(t, s, "2", "moderator")

	id := seedThread(t, s, "course-1", alice, "Closable")
	closed := true
	reason := "off-topic"
	_, err := s.UpdateThread(ctx, id, forum.ThreadUpdate{
		Closed: &closed, ClosedByID: &mod.ID, CloseReasonCode: &reason,
	})
	require.NoError(t, err)

	thread, err := s.GetThread(ctx, id)
	require.NoError(t, err)
	assert.True(t, thread.Closed)
	assert.Equal(t, mod.ID, thread.ClosedByID)
	assert.Equal(t, "off-topic", thread.CloseReasonCode)

	open := false
	_, err = s.UpdateThread(ctx, id, forum.ThreadUpdate{Closed: &open})
	require.NoError(t, err)
	thread, err = s.GetThread(ctx, id)
	require.NoError(t, err)
	assert.False(t, thread.Closed)
	assert.Empty(t, thread.ClosedByID)
	assert.Empty(t, thread.CloseReasonCode)
}

func TestGetCourseThreadIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	a := seedThread(t, s, "course-1", alice, "A", withCommentable("unit-1"))
	b := seedThread(t, s, "course-1", alice, "B", withCommentable("unit-2"))
	seedThread(t, s, "course-2", alice, "C")

	ids, err := s.GetCourseThreadIDs(ctx, "course-1", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, ids)

	ids, err = s.GetCourseThreadIDs(ctx, "course-1", []string{"unit-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{b}, ids)
}

func TestFilterStandaloneThreadIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	course := seedThread(t, s, "course-1", alice, "In course")
	standaloneID, err := s.InsertThread(ctx, forum.ThreadFields{
		CourseID: "course-1", CommentableID: "course", AuthorID: alice.ID,
		AuthorUsername: alice.Username, Title: "Standalone", Body: "b",
		ThreadType: forum.ThreadTypeDiscussion, Context: forum.ContextStandalone,
	})
	require.NoError(t, err)

	kept, err := s.FilterStandaloneThreadIDs(ctx, []string{course, standaloneID})
	require.NoError(t, err)
	assert.Equal(t, []string{course}, kept)
}

func TestGetCommentablesCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	seedThread(t, s, "course-1", alice, "D1", withCommentable("unit-1"))
	seedThread(t, s, "course-1", alice, "D2", withCommentable("unit-1"))
	seedThread(t, s, "course-1", alice, "Q1", withCommentable("unit-1"), asQuestion)
	seedThread(t, s, "course-1", alice, "Q2", withCommentable("unit-2"), asQuestion)

	counts, err := s.GetCommentablesCounts(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, forum.CommentableCounts{Discussion: 2, Question: 1}, counts["unit-1"])
	assert.Equal(t, forum.CommentableCounts{Discussion: 0, Question: 1}, counts["unit-2"])
}

func TestGetEndorsedThreadIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	answered := seedThread(t, s, "course-1", alice, "Answered", asQuestion)
	open := seedThread(t, s, "course-1", alice, "Open", asQuestion)
	response := seedComment(t, s, answered, "", "course-1", bob, "the answer")

	endorsed := true
	_, err := s.UpdateComment(ctx, response, forum.CommentUpdate{
		Endorsed: &endorsed, EndorsementUserID: alice.ID,
	})
	require.NoError(t, err)

	result, err := s.GetEndorsedThreadIDs(ctx, []string{answered, open})
	require.NoError(t, err)
	assert.True(t, result[answered])
	assert.False(t, result[open])
}
