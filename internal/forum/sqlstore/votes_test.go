package sqlstore

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func TestVoteExclusivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	threadID := seedThread(t, s, "course-1", alice, "Votable")

	changed, err := s.UpdateVote(ctx, forum.ContentTypeThread, threadID, bob.ID, forum.VoteUp, false)
	require.NoError(t, err)
	assert.True(t, changed)

	// Repeating the same vote is a no-op.
	changed, err = s.UpdateVote(ctx, forum.ContentTypeThread, threadID, bob.ID, forum.VoteUp, false)
	require.NoError(t, err)
	assert.False(t, changed)

	// The opposite vote replaces the old one rather than stacking.
	changed, err = s.UpdateVote(ctx, forum.ContentTypeThread, threadID, bob.ID, forum.VoteDown, false)
	require.NoError(t, err)
	assert.True(t, changed)

	thread, err := s.GetThread(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, 0, thread.Votes.UpCount)
	assert.Equal(t, 1, thread.Votes.DownCount)
	assert.Equal(t, -1, thread.Votes.Point)
	assert.Equal(t, []string{bob.ID}, thread.Votes.Down)
}

func TestVoteRemoval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	threadID := seedThread(t, s, "course-1", alice, "Unvotable")

	// Removing a vote that does not exist is a no-op.
	changed, err := s.UpdateVote(ctx, forum.ContentTypeThread, threadID, bob.ID, "", true)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = s.UpdateVote(ctx, forum.ContentTypeThread, threadID, bob.ID, forum.VoteUp, false)
	require.NoError(t, err)
	changed, err = s.UpdateVote(ctx, forum.ContentTypeThread, threadID, bob.ID, "", true)
	require.NoError(t, err)
	assert.True(t, changed)

	thread, err := s.GetThread(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, 0, thread.Votes.Count)
}

func TestVoteValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	threadID := seedThread(t, s, "course-1", alice, "Strict")

	_, err := s.UpdateVote(ctx, forum.ContentTypeThread, threadID, alice.ID, "sideways", false)
	assert.True(t, errors.Is(err, forum.ErrInvalidArgument))

	_, err = s.UpdateVote(ctx, forum.ContentTypeThread, "999", alice.ID, forum.VoteUp, false)
	assert.True(t, errors.Is(err, forum.ErrNotFound))
}

func TestGetUserVotedIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "1", "alice")
	bob := seedUser(t, s, "2", "bob")

	up := seedThread(t, s, "course-1", alice, "Upvoted")
	down := seedThread(t, s, "course-1", alice, "Downvoted")

	_, err := s.UpdateVote(ctx, forum.ContentTypeThread, up, bob.ID, forum.VoteUp, false)
	require.NoError(t, err)
	_, err = s.UpdateVote(ctx, forum.ContentTypeThread, down, bob.ID, forum.VoteDown, false)
	require.NoError(t, err)

	upIDs, err := s.GetUserVotedIDs(ctx, bob.ID, forum.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, []string{up}, upIDs)

	downIDs, err := s.GetUserVotedIDs(ctx, bob.ID, forum.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, []string{down}, downIDs)
}
