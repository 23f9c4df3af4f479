package api

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

func TestSearchThreadsDirectHits(t *testing.T) {
	svc, engine := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	match := seedThread(t, svc, "course-1", alice.ID, "Matching")
	seedThread(t, svc, "course-1", alice.ID, "Other")
	engine.hits["matching"] = []string{match.ID}

	result, err := svc.SearchThreads(ctx, "matching", ThreadListRequest{CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, result.Collection, 1)
	assert.Equal(t, "Matching", result.Collection[0].Title)
	assert.Empty(t, result.CorrectedText)
	assert.Equal(t, 1, result.TotalResults)
}

func TestSearchThreadsSpellingFallback(t *testing.T) {
	svc, engine := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")

	match := seedThread(t, svc, "course-1", alice.ID, "Gradient descent")
	engine.suggestions["gradeint"] = "gradient"
	engine.hits["gradient"] = []string{match.ID}

	result, err := svc.SearchThreads(ctx, "gradeint", ThreadListRequest{CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, result.Collection, 1)
	assert.Equal(t, "gradient", result.CorrectedText)
	assert.Equal(t, 1, result.TotalResults)
}

func TestSearchThreadsDiscardsUselessCorrection(t *testing.T) {
	svc, engine := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, svc, "1", "alice")
	seedThread(t, svc, "course-1", alice.ID, "Unrelated")

	// A correction that also finds nothing is never reported back.
	engine.suggestions["zzz"] = "zz"

	result, err := svc.SearchThreads(ctx, "zzz", ThreadListRequest{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Empty(t, result.Collection)
	assert.Empty(t, result.CorrectedText)
	assert.Equal(t, 0, result.TotalResults)
}

func TestSearchThreadsRequiresText(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SearchThreads(context.Background(), "", ThreadListRequest{CourseID: "course-1"})
	assert.True(t, errors.Is(err, forum.ErrInvalidArgument))
}
