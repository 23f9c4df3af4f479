package api

import (
	"context"

	"coursetalk/internal/forum"
	"coursetalk/internal/utils"
)

// CreateThreadRequest carries the inputs of CreateThread. CommentableID,
// ThreadType and Context default to their course-level values when empty.
type CreateThreadRequest struct {
	Title            string `json:"title" binding:"required"`
	Body             string `json:"body" binding:"required"`
	CourseID         string `json:"course_id" binding:"required"`
	UserID           string `json:"user_id" binding:"required"`
	Anonymous        bool   `json:"anonymous"`
	AnonymousToPeers bool   `json:"anonymous_to_peers"`
	CommentableID    string `json:"commentable_id"`
	ThreadType       string `json:"thread_type"`
	GroupID          *int   `json:"group_id"`
	Context          string `json:"context"`
}

// CreateThread inserts the thread, bumps the author's course stats unless
// the post is anonymous, and indexes the new document.
func (s *Service) CreateThread(ctx context.Context, req CreateThreadRequest) (*forum.Thread, error) {
	if req.CommentableID == "" {
		req.CommentableID = forum.ContextCourse
	}
	if req.ThreadType == "" {
		req.ThreadType = forum.ThreadTypeDiscussion
	}
	if req.Context == "" {
		req.Context = forum.ContextCourse
	}
	author, err := s.backend.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	id, err := s.backend.InsertThread(ctx, forum.ThreadFields{
		CourseID:         req.CourseID,
		CommentableID:    req.CommentableID,
		AuthorID:         author.ID,
		AuthorUsername:   author.Username,
		Title:            utils.SanitizeTitle(req.Title),
		Body:             utils.SanitizeBody(req.Body),
		ThreadType:       req.ThreadType,
		Context:          req.Context,
		Anonymous:        req.Anonymous,
		AnonymousToPeers: req.AnonymousToPeers,
		GroupID:          req.GroupID,
	})
	if err != nil {
		return nil, err
	}
	thread, err := s.backend.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}

	if !req.Anonymous && !req.AnonymousToPeers {
		if err := s.backend.UpdateStatsForCourse(ctx, thread.AuthorID, thread.CourseID,
			map[string]int{forum.StatThreads: 1}); err != nil {
			return nil, err
		}
	}
	s.indexDocument(ctx, threadSearchDocument(thread))
	return thread, nil
}

// GetThread returns the thread with its presentation annotations for the
// requesting user; markRead stamps the user's read state first.
func (s *Service) GetThread(ctx context.Context, threadID, userID string, markRead bool) (*forum.AnnotatedThread, error) {
	if markRead && userID != "" {
		if _, err := s.backend.GetUser(ctx, userID); err == nil {
			if err := s.backend.MarkAsRead(ctx, userID, threadID); err != nil {
				return nil, err
			}
		}
	}
	thread, err := s.backend.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return s.annotateThread(ctx, thread, userID)
}

func (s *Service) annotateThread(ctx context.Context, thread *forum.Thread, userID string) (*forum.AnnotatedThread, error) {
	state := forum.ThreadReadState{IsRead: false, UnreadCommentCount: thread.CommentCount}
	if userID != "" {
		states, err := s.backend.GetReadStates(ctx, []string{thread.ID}, userID, thread.CourseID)
		if err != nil {
			return nil, err
		}
		if st, ok := states[thread.ID]; ok {
			state = st
		}
	}
	endorsed, err := s.backend.GetEndorsedThreadIDs(ctx, []string{thread.ID})
	if err != nil {
		return nil, err
	}
	return &forum.AnnotatedThread{
		Thread:             thread,
		IsRead:             state.IsRead,
		UnreadCommentCount: state.UnreadCommentCount,
		EndorsedResponse:   endorsed[thread.ID],
	}, nil
}

// UpdateThread applies the update and reindexes. Closing a thread requires
// both the closer and a close reason.
func (s *Service) UpdateThread(ctx context.Context, threadID string, u forum.ThreadUpdate) (*forum.Thread, error) {
	if _, err := s.backend.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	if u.Closed != nil && *u.Closed {
		if u.ClosedByID == nil || u.CloseReasonCode == nil {
			return nil, forum.InvalidArgumentf("closing a thread requires closed_by_id and close_reason_code")
		}
	}
	if u.Title != nil {
		title := utils.SanitizeTitle(*u.Title)
		u.Title = &title
	}
	if u.Body != nil {
		body := utils.SanitizeBody(*u.Body)
		u.Body = &body
	}
	if _, err := s.backend.UpdateThread(ctx, threadID, u); err != nil {
		return nil, err
	}
	thread, err := s.backend.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	s.indexDocument(ctx, threadSearchDocument(thread))
	return thread, nil
}

// PinThread marks the thread pinned.
func (s *Service) PinThread(ctx context.Context, threadID string) (*forum.Thread, error) {
	pinned := true
	return s.UpdateThread(ctx, threadID, forum.ThreadUpdate{Pinned: &pinned})
}

// UnpinThread clears the pinned mark.
func (s *Service) UnpinThread(ctx context.Context, threadID string) (*forum.Thread, error) {
	pinned := false
	return s.UpdateThread(ctx, threadID, forum.ThreadUpdate{Pinned: &pinned})
}

// DeleteThread cascades comments and subscriptions, removes the thread,
// decrements the author's stats unless the post was anonymous, and clears
// the search index. The returned snapshot is taken after the comment
// cascade, matching what a caller observes last.
func (s *Service) DeleteThread(ctx context.Context, threadID string) (*forum.Thread, error) {
	thread, err := s.backend.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	comments, err := s.backend.GetThreadComments(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if _, err := s.backend.DeleteCommentsOfThread(ctx, threadID); err != nil {
		return nil, err
	}
	snapshot, err := s.backend.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.backend.DeleteSubscriptionsOfThread(ctx, threadID); err != nil {
		return nil, err
	}
	deleted, err := s.backend.DeleteThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if deleted > 0 && !thread.Anonymous && !thread.AnonymousToPeers {
		if err := s.backend.UpdateStatsForCourse(ctx, thread.AuthorID, thread.CourseID,
			map[string]int{forum.StatThreads: -1}); err != nil {
			return nil, err
		}
	}

	s.unindexDocument(ctx, forum.ContentTypeThread, threadID)
	for _, c := range comments {
		s.unindexDocument(ctx, forum.ContentTypeComment, c.ID)
	}
	return snapshot, nil
}

// ThreadListRequest selects threads of one course for the query engine.
type ThreadListRequest struct {
	CourseID       string
	UserID         string
	GroupIDs       []int
	AuthorID       string
	ThreadType     string
	CommentableIDs []string

	Flagged      bool
	Unread       bool
	Unanswered   bool
	Unresponded  bool
	CountFlagged bool

	SortKey string
	Page    int
	PerPage int
	Context string
}

func (r ThreadListRequest) toQuery(candidates []string) forum.ThreadQuery {
	return forum.ThreadQuery{
		ThreadIDs:    candidates,
		UserID:       r.UserID,
		CourseID:     r.CourseID,
		GroupIDs:     r.GroupIDs,
		AuthorID:     r.AuthorID,
		ThreadType:   r.ThreadType,
		Flagged:      r.Flagged,
		Unread:       r.Unread,
		Unanswered:   r.Unanswered,
		Unresponded:  r.Unresponded,
		CountFlagged: r.CountFlagged,
		SortKey:      r.SortKey,
		Page:         r.Page,
		PerPage:      r.PerPage,
		Context:      r.Context,
	}
}

// ListThreads pages through the course's threads.
func (s *Service) ListThreads(ctx context.Context, req ThreadListRequest) (*forum.ThreadQueryResult, error) {
	candidates, err := s.backend.GetCourseThreadIDs(ctx, req.CourseID, req.CommentableIDs)
	if err != nil {
		return nil, err
	}
	return s.backend.HandleThreadsQuery(ctx, req.toQuery(candidates))
}

// ListUserThreads pages through the threads a user authored in a course.
func (s *Service) ListUserThreads(ctx context.Context, authorID string, req ThreadListRequest) (*forum.ThreadQueryResult, error) {
	req.AuthorID = authorID
	return s.ListThreads(ctx, req)
}

// ListSubscribedThreads pages through the course threads the user follows.
func (s *Service) ListSubscribedThreads(ctx context.Context, userID string, req ThreadListRequest) (*forum.ThreadQueryResult, error) {
	candidates, err := s.backend.FindSubscribedThreadIDs(ctx, userID, req.CourseID)
	if err != nil {
		return nil, err
	}
	return s.backend.HandleThreadsQuery(ctx, req.toQuery(candidates))
}

// GetCommentablesCounts counts the course's threads per commentable and
// thread type.
func (s *Service) GetCommentablesCounts(ctx context.Context, courseID string) (map[string]forum.CommentableCounts, error) {
	return s.backend.GetCommentablesCounts(ctx, courseID)
}
