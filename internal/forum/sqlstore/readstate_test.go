package sqlstore

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func TestMarkAsReadAndGetReadStates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	readThread := seedThread(t, s, "course-1", alice, "Read")
	unreadThread := seedThread(t, s, "course-1", alice, "Never opened")

	require.NoError(t, s.MarkAsRead(ctx, bob.ID, readThread))

	states, err := s.GetReadStates(ctx, []string{readThread, unreadThread}, bob.ID, "course-1")
	require.NoError(t, err)

	state, ok := states[readThread]
	require.True(t, ok)
	assert.True(t, state.IsRead)
	assert.Equal(t, 0, state.UnreadCommentCount)

	// Threads the user never opened are absent; callers default them.
	_, ok = states[unreadThread]
	assert.False(t, ok)
}

func TestMarkAsReadMissingThread(t *testing.T) {
	s := newTestStore(t)
	bob := seedUser(t, s, "2", "bob")
	err := s.MarkAsRead(context.Background(), bob.ID, "999")
	assert.True(t, errors.Is(err, forum.ErrNotFound))
}

func TestUnreadCountExcludesOwnComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	threadID := seedThread(t, s, "course-1", alice, "Active")
	require.NoError(t, s.MarkAsRead(ctx, bob.ID, threadID))

	// Bob's own comment does not count against him; alice's does.
	seedComment(t, s, threadID, "", "course-1", bob, "mine")
	seedComment(t, s, threadID, "", "course-1", alice, "theirs")

	states, err := s.GetReadStates(ctx, []string{threadID}, bob.ID, "course-1")
	require.NoError(t, err)
	state := states[threadID]
	assert.False(t, state.IsRead)
	assert.Equal(t, 1, state.UnreadCommentCount)
}

func TestGetUserReadDates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	a := seedThread(t, s, "course-1", alice, "A")
	b := seedThread(t, s, "course-1", alice, "B")
	require.NoError(t, s.MarkAsRead(ctx, bob.ID, a))

	dates, err := s.GetUserReadDates(ctx, bob.ID, "course-1")
	require.NoError(t, err)
	assert.Contains(t, dates, a)
	assert.NotContains(t, dates, b)

	// Re-reading moves the timestamp forward.
	first := dates[a]
	require.NoError(t, s.MarkAsRead(ctx, bob.ID, a))
	dates, err = s.GetUserReadDates(ctx, bob.ID, "course-1")
	require.NoError(t, err)
	assert.False(t, dates[a].Before(first))
}
