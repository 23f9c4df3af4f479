package api

import (
	"context"

	"coursetalk/internal/forum"
)

// threadListParams is the allow-list for thread listing and search query
// parameters. Anything else is rejected by name before any work happens.
var threadListParams = map[string]bool{
	"course_id":       true,
	"author_id":       true,
	"thread_type":     true,
	"flagged":         true,
	"unread":          true,
	"unanswered":      true,
	"unresponded":     true,
	"count_flagged":   true,
	"sort_key":        true,
	"page":            true,
	"per_page":        true,
	"request_id":      true,
	"commentable_ids": true,
	"group_id":        true,
	"group_ids":       true,
	"text":            true,
	"context":         true,
	"user_id":         true,
}

// ValidateThreadListParams enforces the parameter allow-list, the required
// course_id, and that a referenced user exists.
func (s *Service) ValidateThreadListParams(ctx context.Context, params map[string][]string) error {
	for key := range params {
		if !threadListParams[key] {
			return forum.InvalidArgumentf("parameter %q", key)
		}
	}
	if len(params["course_id"]) == 0 || params["course_id"][0] == "" {
		return forum.InvalidArgumentf("missing required parameter course_id")
	}
	if userIDs := params["user_id"]; len(userIDs) > 0 && userIDs[0] != "" {
		if _, err := s.backend.GetUser(ctx, userIDs[0]); err != nil {
			return err
		}
	}
	return nil
}
