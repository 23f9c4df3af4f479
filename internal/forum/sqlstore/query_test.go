package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func collectTitles(result *forum.ThreadQueryResult) []string {
	titles := make([]string, len(result.Collection))
	for i, t := range result.Collection {
		titles[i] = t.Title
	}
	return titles
}

func TestThreadsQueryPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		id := seedThread(t, s, "course-1", alice, "T")
		setThreadCreatedAt(t, s, id, base.Add(time.Duration(i)*time.Hour))
		ids = append(ids, id)
	}

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: ids, CourseID: "course-1", Page: 1, PerPage: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.ThreadCount)
	assert.Equal(t, 3, result.NumPages)
	assert.Len(t, result.Collection, 2)
	assert.False(t, result.Approximate)

	last, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: ids, CourseID: "course-1", Page: 3, PerPage: 2,
	})
	require.NoError(t, err)
	assert.Len(t, last.Collection, 1)
}

func TestThreadsQueryDateOrderNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := seedThread(t, s, "course-1", alice, "Old")
	setThreadCreatedAt(t, s, old, base)
	recent := seedThread(t, s, "course-1", alice, "Recent")
	setThreadCreatedAt(t, s, recent, base.Add(time.Hour))

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{old, recent}, CourseID: "course-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Recent", "Old"}, collectTitles(result))
}

func TestThreadsQueryPinnedFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pinned := seedThread(t, s, "course-1", alice, "Pinned but old")
	setThreadCreatedAt(t, s, pinned, base)
	recent := seedThread(t, s, "course-1", alice, "Recent")
	setThreadCreatedAt(t, s, recent, base.Add(time.Hour))

	isPinned := true
	_, err := s.UpdateThread(ctx, pinned, forum.ThreadUpdate{Pinned: &isPinned})
	require.NoError(t, err)

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{pinned, recent}, CourseID: "course-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pinned but old", "Recent"}, collectTitles(result))
}

func TestThreadsQueryVoteOrderWithTieBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")
	carol := seedUser(t, s, "3", "carol")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	popular := seedThread(t, s, "course-1", alice, "Popular")
	setThreadCreatedAt(t, s, popular, base)
	tiedOld := seedThread(t, s, "course-1", alice, "Tied old")
	setThreadCreatedAt(t, s, tiedOld, base.Add(time.Hour))
	tiedNew := seedThread(t, s, "course-1", alice, "Tied new")
	setThreadCreatedAt(t, s, tiedNew, base.Add(2*time.Hour))

	for _, voter := range []*forum.User{bob, carol} {
		_, err := s.UpdateVote(ctx, forum.ContentTypeThread, popular, voter.ID, forum.VoteUp, false)
		require.NoError(t, err)
	}

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{popular, tiedOld, tiedNew},
		CourseID:  "course-1",
		SortKey:   forum.SortKeyVotes,
	})
	require.NoError(t, err)
	// Equal vote counts fall back to newest-first.
	assert.Equal(t, []string{"Popular", "Tied new", "Tied old"}, collectTitles(result))
}

func TestThreadsQueryGroupFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	grouped := seedThread(t, s, "course-1", alice, "Group 7", withGroup(7))
	other := seedThread(t, s, "course-1", alice, "Group 9", withGroup(9))
	ungrouped := seedThread(t, s, "course-1", alice, "Everyone")

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{grouped, other, ungrouped},
		CourseID:  "course-1",
		GroupIDs:  []int{7},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Group 7", "Everyone"}, collectTitles(result))
}

func TestThreadsQueryAnonymityVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	public := seedThread(t, s, "course-1", alice, "Public")
	anon := seedThread(t, s, "course-1", alice, "Anonymous", asAnonymous)
	ids := []string{public, anon}

	// The author sees their own anonymous posts.
	own, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: ids, CourseID: "course-1", AuthorID: alice.ID, UserID: alice.ID,
	})
	require.NoError(t, err)
	assert.Len(t, own.Collection, 2)

	// Everyone else only sees the public ones.
	others, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: ids, CourseID: "course-1", AuthorID: alice.ID, UserID: "2",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Public"}, collectTitles(others))
}

func TestThreadsQueryUnanswered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	answered := seedThread(t, s, "course-1", alice, "Answered", asQuestion)
	open := seedThread(t, s, "course-1", alice, "Open", asQuestion)
	discussion := seedThread(t, s, "course-1", alice, "Discussion")

	response := seedComment(t, s, answered, "", "course-1", bob, "the answer")
	endorsed := true
	_, err := s.UpdateComment(ctx, response, forum.CommentUpdate{
		Endorsed: &endorsed, EndorsementUserID: alice.ID,
	})
	require.NoError(t, err)

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs:  []string{answered, open, discussion},
		CourseID:   "course-1",
		Unanswered: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Open"}, collectTitles(result))
}

func TestThreadsQueryUnresponded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	quiet := seedThread(t, s, "course-1", alice, "Quiet")
	busy := seedThread(t, s, "course-1", alice, "Busy")
	seedComment(t, s, busy, "", "course-1", alice, "response")

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{quiet, busy}, CourseID: "course-1", Unresponded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Quiet"}, collectTitles(result))
}

func TestThreadsQueryFlagged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	direct := seedThread(t, s, "course-1", alice, "Flagged thread")
	viaComment := seedThread(t, s, "course-1", alice, "Flagged comment")
	clean := seedThread(t, s, "course-1", alice, "Clean")
	comment := seedComment(t, s, viaComment, "", "course-1", alice, "bad comment")

	require.NoError(t, s.FlagAsAbuse(ctx, forum.ContentTypeThread, direct, bob.ID))
	require.NoError(t, s.FlagAsAbuse(ctx, forum.ContentTypeComment, comment, bob.ID))

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{direct, viaComment, clean},
		CourseID:  "course-1",
		Flagged:   true,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Flagged thread", "Flagged comment"}, collectTitles(result))
}

func TestThreadsQueryUnreadApproximatePagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		id := seedThread(t, s, "course-1", alice, "T")
		setThreadCreatedAt(t, s, id, base.Add(time.Duration(i)*time.Hour))
		ids = append(ids, id)
	}
	// Bob has read the two newest threads.
	require.NoError(t, s.MarkAsRead(ctx, bob.ID, ids[4]))
	require.NoError(t, s.MarkAsRead(ctx, bob.ID, ids[3]))

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: ids, CourseID: "course-1", UserID: bob.ID,
		Unread: true, Page: 1, PerPage: 2,
	})
	require.NoError(t, err)
	assert.Len(t, result.Collection, 2)
	assert.True(t, result.Approximate)
	// Two collected, one more unread exists past the page boundary.
	assert.Equal(t, 2, result.NumPages)

	second, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: ids, CourseID: "course-1", UserID: bob.ID,
		Unread: true, Page: 2, PerPage: 2,
	})
	require.NoError(t, err)
	assert.Len(t, second.Collection, 1)
	assert.Equal(t, 2, second.NumPages)
}

func TestThreadsQueryReadStateAnnotations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	threadID := seedThread(t, s, "course-1", alice, "Annotated")
	seedComment(t, s, threadID, "", "course-1", alice, "before read")

	require.NoError(t, s.MarkAsRead(ctx, bob.ID, threadID))
	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{threadID}, CourseID: "course-1", UserID: bob.ID,
	})
	require.NoError(t, err)
	require.Len(t, result.Collection, 1)
	assert.True(t, result.Collection[0].IsRead)
	assert.Equal(t, 0, result.Collection[0].UnreadCommentCount)

	// New activity after the read flips the state back.
	seedComment(t, s, threadID, "", "course-1", alice, "after read")
	result, err = s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{threadID}, CourseID: "course-1", UserID: bob.ID,
	})
	require.NoError(t, err)
	require.Len(t, result.Collection, 1)
	assert.False(t, result.Collection[0].IsRead)
	assert.Equal(t, 1, result.Collection[0].UnreadCommentCount)
}

func TestThreadsQueryEmptyCandidates(t *testing.T) {
	s := newTestStore(t)
	result, err := s.HandleThreadsQuery(context.Background(), forum.ThreadQuery{
		CourseID: "course-1", Page: 3,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Collection)
	assert.Equal(t, 3, result.Page)
	assert.Equal(t, 1, result.NumPages)
	assert.Equal(t, int64(0), result.ThreadCount)
}

func TestThreadsQueryRaw(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")

	a := seedThread(t, s, "course-1", alice, "One")
	b := seedThread(t, s, "course-1", alice, "Two")

	result, err := s.HandleThreadsQuery(ctx, forum.ThreadQuery{
		ThreadIDs: []string{a, b}, CourseID: "course-1", RawQuery: true,
	})
	require.NoError(t, err)
	assert.Len(t, result.Raw, 2)
	assert.Empty(t, result.Collection)
}
