package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetalk/internal/forum"
)

// sliceSource feeds a fixed document set to index rebuilds.
type sliceSource struct {
	docs []forum.SearchDocument
}

func (s *sliceSource) StreamSearchDocuments(_ context.Context, since *time.Time, fn func(forum.SearchDocument) error) error {
	for _, d := range s.docs {
		if since != nil && d.UpdatedAt.Before(*since) {
			continue
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func newTestBleve(t *testing.T) *Bleve {
	t.Helper()
	engine, err := NewBleve("", &sliceSource{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func threadDoc(id, courseID, commentableID, title, body string) forum.SearchDocument {
	now := time.Now().UTC()
	return forum.SearchDocument{
		ID:            id,
		ContentType:   forum.ContentTypeThread,
		CourseID:      courseID,
		CommentableID: commentableID,
		Context:       forum.ContextCourse,
		Title:         title,
		Body:          body,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func commentDoc(id, threadID, courseID, body string) forum.SearchDocument {
	now := time.Now().UTC()
	return forum.SearchDocument{
		ID:          id,
		ContentType: forum.ContentTypeComment,
		ThreadID:    threadID,
		CourseID:    courseID,
		Body:        body,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestBleveSearchMatchesTitleAndBody(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.IndexDocument(ctx, threadDoc("1", "course-1", "unit-1", "Gradient descent", "an optimizer")))
	require.NoError(t, b.IndexDocument(ctx, threadDoc("2", "course-1", "unit-1", "Office hours", "gradient questions welcome")))
	require.NoError(t, b.IndexDocument(ctx, threadDoc("3", "course-1", "unit-1", "Unrelated", "nothing here")))

	ids, err := b.GetThreadIDs(ctx, ThreadQuery{Text: "gradient", CourseID: "course-1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, ids)
}

func TestBleveCommentHitsMapToOwningThread(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.IndexDocument(ctx, threadDoc("10", "course-1", "unit-1", "Quiet title", "quiet body")))
	require.NoError(t, b.IndexDocument(ctx, commentDoc("100", "10", "course-1", "entropy is confusing")))
	require.NoError(t, b.IndexDocument(ctx, commentDoc("101", "10", "course-1", "more entropy talk")))

	ids, err := b.GetThreadIDs(ctx, ThreadQuery{Text: "entropy", CourseID: "course-1"})
	require.NoError(t, err)
	// Two comment hits on one thread dedup to a single id.
	assert.Equal(t, []string{"10"}, ids)
}

func TestBleveCourseFilter(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.IndexDocument(ctx, threadDoc("1", "course-1", "unit-1", "shared topic", "x")))
	require.NoError(t, b.IndexDocument(ctx, threadDoc("2", "course-2", "unit-1", "shared topic", "x")))

	ids, err := b.GetThreadIDs(ctx, ThreadQuery{Text: "shared", CourseID: "course-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)
}

func TestBleveCommentableFilter(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.IndexDocument(ctx, threadDoc("1", "course-1", "unit-1", "topic", "x")))
	require.NoError(t, b.IndexDocument(ctx, threadDoc("2", "course-1", "unit-2", "topic", "x")))
	require.NoError(t, b.IndexDocument(ctx, threadDoc("3", "course-1", "unit-3", "topic", "x")))

	ids, err := b.GetThreadIDs(ctx, ThreadQuery{
		Text: "topic", CourseID: "course-1", CommentableIDs: []string{"unit-1", "unit-3"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, ids)
}

func TestBleveAllTermsMustMatch(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.IndexDocument(ctx, threadDoc("1", "course-1", "unit-1", "t", "linear regression models")))
	require.NoError(t, b.IndexDocument(ctx, threadDoc("2", "course-1", "unit-1", "t", "linear algebra only")))

	ids, err := b.GetThreadIDs(ctx, ThreadQuery{Text: "linear regression", CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
}

func TestBleveDeleteDocument(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()

	require.NoError(t, b.IndexDocument(ctx, threadDoc("1", "course-1", "unit-1", "ephemeral", "x")))
	require.NoError(t, b.DeleteDocument(ctx, forum.ContentTypeThread, "1"))

	ids, err := b.GetThreadIDs(ctx, ThreadQuery{Text: "ephemeral", CourseID: "course-1"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestBleveRebuildIndices(t *testing.T) {
	source := &sliceSource{}
	for i := 0; i < 7; i++ {
		source.docs = append(source.docs,
			threadDoc(fmt.Sprintf("%d", i+1), "course-1", "unit-1", "bulk import", "x"))
	}
	engine, err := NewBleve("", source)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	// Batch size smaller than the corpus forces an intermediate flush.
	require.NoError(t, engine.RebuildIndices(context.Background(), 3, 0))

	ids, err := engine.GetThreadIDs(context.Background(), ThreadQuery{Text: "bulk", CourseID: "course-1"})
	require.NoError(t, err)
	assert.Len(t, ids, 7)
}

func TestBleveNoSuggestions(t *testing.T) {
	b := newTestBleve(t)
	suggestion, err := b.GetSuggestedText(context.Background(), "mispelled", DefaultSuggestionFields)
	require.NoError(t, err)
	assert.Empty(t, suggestion)
}

func TestDisabledEngine(t *testing.T) {
	d := NewDisabled()
	ids, err := d.GetThreadIDs(context.Background(), ThreadQuery{Text: "anything"})
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, d.IndexDocument(context.Background(), forum.SearchDocument{ID: "1"}))
	n, err := d.DeleteUnusedIndices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
