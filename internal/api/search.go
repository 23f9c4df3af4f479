package api

import (
	"context"

	"coursetalk/internal/forum"
	"coursetalk/internal/search"
)

// SearchResult is a thread query result plus the search metadata: the
// spelling correction actually used (if any) and the raw hit count before
// filtering.
type SearchResult struct {
	*forum.ThreadQueryResult
	CorrectedText string `json:"corrected_text,omitempty"`
	TotalResults  int    `json:"total_results"`
}

// threadIDsFromIndex resolves the search text to candidate thread ids.
// When the text finds nothing it asks the engine for a spelling correction
// and retries once; a correction that still finds nothing is discarded so
// callers never see a correction with zero results.
func (s *Service) threadIDsFromIndex(ctx context.Context, q search.ThreadQuery) ([]string, string, error) {
	ids, err := s.search.GetThreadIDs(ctx, q)
	if err != nil {
		return nil, "", err
	}
	if len(ids) > 0 {
		return ids, "", nil
	}

	corrected, err := s.search.GetSuggestedText(ctx, q.Text, search.DefaultSuggestionFields)
	if err != nil {
		return nil, "", err
	}
	if corrected == "" {
		return ids, "", nil
	}
	q.Text = corrected
	ids, err = s.search.GetThreadIDs(ctx, q)
	if err != nil {
		return nil, "", err
	}
	if len(ids) == 0 {
		return ids, "", nil
	}
	return ids, corrected, nil
}

// SearchThreads resolves the text against the search index and runs the
// thread query engine over the matching ids.
func (s *Service) SearchThreads(ctx context.Context, text string, req ThreadListRequest) (*SearchResult, error) {
	if text == "" {
		return nil, forum.InvalidArgumentf("search text required")
	}
	queryContext := req.Context
	if queryContext == "" {
		queryContext = forum.ContextCourse
	}

	candidates, corrected, err := s.threadIDsFromIndex(ctx, search.ThreadQuery{
		Text:           text,
		Context:        queryContext,
		CourseID:       req.CourseID,
		GroupIDs:       req.GroupIDs,
		CommentableIDs: req.CommentableIDs,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.backend.HandleThreadsQuery(ctx, req.toQuery(candidates))
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		ThreadQueryResult: result,
		CorrectedText:     corrected,
		TotalResults:      len(candidates),
	}, nil
}
