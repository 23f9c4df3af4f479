package api

import (
	"context"

	"coursetalk/internal/forum"
)

// UserProfile is a user with an optional course-scoped stats view.
type UserProfile struct {
	*forum.User
	CourseStats *forum.CourseStats `json:"course_stats,omitempty"`
}

// FindOrCreateUser upserts the forum-side user record.
func (s *Service) FindOrCreateUser(ctx context.Context, id, username, email string) (*forum.User, error) {
	if id == "" {
		return nil, forum.InvalidArgumentf("user id required")
	}
	return s.backend.FindOrCreateUser(ctx, id, username, email)
}

// GetUserProfile returns the user, with their stats in the given course
// when courseID is non-empty.
func (s *Service) GetUserProfile(ctx context.Context, userID, courseID string) (*UserProfile, error) {
	user, err := s.backend.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := &UserProfile{User: user}
	if courseID != "" {
		page, err := s.backend.GetUserStats(ctx, courseID, forum.UserStatsQuery{
			Usernames: []string{user.Username},
		})
		if err != nil {
			return nil, err
		}
		if len(page.Stats) > 0 {
			profile.CourseStats = page.Stats[0]
		}
	}
	return profile, nil
}

// UpdateUser changes username and/or email; a new username is propagated
// into all of the user's existing content.
func (s *Service) UpdateUser(ctx context.Context, id, username, email string) (*forum.User, error) {
	current, err := s.backend.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.backend.UpdateUser(ctx, id, username, email); err != nil {
		return nil, err
	}
	if username != "" && username != current.Username {
		if err := s.backend.ReplaceUsernameInAllContent(ctx, id, username); err != nil {
			return nil, err
		}
	}
	return s.backend.GetUser(ctx, id)
}

// RetireUser blanks the user's identity: the retired surrogate replaces
// the username, all subscriptions are dropped and all content is retired.
func (s *Service) RetireUser(ctx context.Context, userID, retiredUsername string) error {
	if retiredUsername == "" {
		return forum.InvalidArgumentf("retired_username required")
	}
	if _, err := s.backend.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.backend.UpdateUser(ctx, userID, retiredUsername, ""); err != nil {
		return err
	}
	if err := s.backend.UnsubscribeAllForUser(ctx, userID); err != nil {
		return err
	}
	return s.backend.RetireAllContent(ctx, userID, retiredUsername)
}

// MarkThreadAsRead stamps the user's read state for the thread.
func (s *Service) MarkThreadAsRead(ctx context.Context, userID, threadID string) error {
	if _, err := s.backend.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.backend.MarkAsRead(ctx, userID, threadID)
}

// GetUserStats lists per-user stats of a course.
func (s *Service) GetUserStats(ctx context.Context, courseID string, q forum.UserStatsQuery) (*forum.UserStatsPage, error) {
	if courseID == "" {
		return nil, forum.InvalidArgumentf("course_id required")
	}
	return s.backend.GetUserStats(ctx, courseID, q)
}

// RebuildCourseStats recomputes the stats of every author in the course
// and returns their ids.
func (s *Service) RebuildCourseStats(ctx context.Context, courseID string) ([]string, error) {
	if courseID == "" {
		return nil, forum.InvalidArgumentf("course_id required")
	}
	return s.backend.UpdateAllUsersInCourse(ctx, courseID)
}
