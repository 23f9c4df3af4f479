package search

import (
	"context"

	"coursetalk/internal/forum"
)

// maxSearchSize bounds every full-text query; deep result sets are cut off
// rather than paged at the search layer.
const maxSearchSize = 1000

// DefaultSuggestionFields are the fields the spelling-correction lookup
// consults, in priority order.
var DefaultSuggestionFields = []string{"body", "title"}

// ThreadQuery is the structural+full-text parameter set of a thread search.
type ThreadQuery struct {
	Text           string
	Context        string
	CourseID       string
	GroupIDs       []int
	CommentableIDs []string
}

// Engine is the search-index adapter. Thread hits map to their own id,
// comment hits map to the owning thread; GetThreadIDs returns the
// de-duplicated union, unordered.
type Engine interface {
	GetThreadIDs(ctx context.Context, q ThreadQuery) ([]string, error)
	// GetSuggestedText returns the top phrase suggestion across the given
	// fields, or "" when the engine has none to offer.
	GetSuggestedText(ctx context.Context, text string, fields []string) (string, error)

	IndexDocument(ctx context.Context, doc forum.SearchDocument) error
	DeleteDocument(ctx context.Context, contentType, id string) error

	// Index lifecycle, outside the query hot path.
	InitializeIndices(ctx context.Context, force bool) error
	// RebuildIndices builds fresh indices, bulk-imports all content, catches
	// up on rows changed during the import, flips the read aliases, and
	// leaves the old indices for DeleteUnusedIndices.
	RebuildIndices(ctx context.Context, batchSize, extraCatchupMinutes int) error
	ValidateIndices(ctx context.Context) error
	RefreshIndices(ctx context.Context) error
	DeleteUnusedIndices(ctx context.Context) (int, error)
}

// Disabled is the no-op engine used when search is turned off. Queries
// return no hits and maintenance operations succeed without doing anything.
type Disabled struct{}

var _ Engine = Disabled{}

func NewDisabled() Disabled { return Disabled{} }

func (Disabled) GetThreadIDs(context.Context, ThreadQuery) ([]string, error) {
	return []string{}, nil
}

func (Disabled) GetSuggestedText(context.Context, string, []string) (string, error) {
	return "", nil
}

func (Disabled) IndexDocument(context.Context, forum.SearchDocument) error { return nil }
func (Disabled) DeleteDocument(context.Context, string, string) error      { return nil }
func (Disabled) InitializeIndices(context.Context, bool) error             { return nil }
func (Disabled) RebuildIndices(context.Context, int, int) error            { return nil }
func (Disabled) ValidateIndices(context.Context) error                     { return nil }
func (Disabled) RefreshIndices(context.Context) error                      { return nil }
func (Disabled) DeleteUnusedIndices(context.Context) (int, error)          { return 0, nil }
