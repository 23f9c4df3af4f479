package api

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func TestFlagAndUnflagThread(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	bob := seedUser(t, svc, "2", "bob")

	thread := seedThread(t, svc, "course-1", alice.ID, "Reported")

	flagged, err := svc.FlagThread(ctx, thread.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, flagged.AbuseFlaggers)

	unflagged, err := svc.UnflagThread(ctx, thread.ID, bob.ID, false)
	require.NoError(t, err)
	assert.Empty(t, unflagged.AbuseFlaggers)
}

func TestUnflagThreadAllMovesToHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	bob := seedUser(t, svc, "2", "bob")
	carol := seedUser(t, svc, "3", "carol")

	thread := seedThread(t, svc, "course-1", alice.ID, "Moderated")
	_, err := svc.FlagThread(ctx, thread.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.FlagThread(ctx, thread.ID, carol.ID)
	require.NoError(t, err)

	cleared, err := svc.UnflagThread(ctx, thread.ID, "", true)
	require.NoError(t, err)
	assert.Empty(t, cleared.AbuseFlaggers)
	assert.ElementsMatch(t, []string{bob.ID, carol.ID}, cleared.HistoricalAbuseFlaggers)
}

func TestFlagCommentRequiresKnownUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	thread := seedThread(t, svc, "course-1", alice.ID, "Thread")
	comment := seedComment(t, svc, thread.ID, "course-1", alice.ID, "response")

	_, err := svc.FlagComment(ctx, comment.ID, "ghost")
	assert.True(t, errors.Is(err, forum.ErrNotFound))

	flagged, err := svc.FlagComment(ctx, comment.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, flagged.AbuseFlaggers)
}
