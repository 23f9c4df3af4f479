package forum

import (
	"context"
	"time"
)

// ContentStore is CRUD over the two content kinds. Both implementations must
// yield equal result sets for equal logical queries.
type ContentStore interface {
	InsertThread(ctx context.Context, fields ThreadFields) (string, error)
	GetThread(ctx context.Context, id string) (*Thread, error)
	GetThreadsByIDs(ctx context.Context, ids []string) ([]*Thread, error)
	UpdateThread(ctx context.Context, id string, update ThreadUpdate) (int64, error)
	// DeleteThread removes the thread and its read-state entries. Comments
	// and subscriptions are cascaded by the caller so their counts and stats
	// effects stay observable.
	DeleteThread(ctx context.Context, id string) (int64, error)

	InsertComment(ctx context.Context, fields CommentFields) (string, error)
	GetComment(ctx context.Context, id string) (*Comment, error)
	GetThreadComments(ctx context.Context, threadID string) ([]*Comment, error)
	UpdateComment(ctx context.Context, id string, update CommentUpdate) (int64, error)
	// DeleteComment cascades replies of a depth-0 comment and returns the
	// total number of comments removed.
	DeleteComment(ctx context.Context, id string) (int64, error)
	DeleteCommentsOfThread(ctx context.Context, threadID string) (int64, error)

	// GetCourseThreadIDs lists the candidate thread ids of a course,
	// optionally restricted to the given commentables.
	GetCourseThreadIDs(ctx context.Context, courseID string, commentableIDs []string) ([]string, error)
	FilterStandaloneThreadIDs(ctx context.Context, ids []string) ([]string, error)
	GetCourseIDByThread(ctx context.Context, threadID string) (string, error)
	GetCourseIDByComment(ctx context.Context, commentID string) (string, error)
	GetCommentablesCounts(ctx context.Context, courseID string) (map[string]CommentableCounts, error)
	// GetEndorsedThreadIDs reports which of the given threads have at least
	// one endorsed top-level comment.
	GetEndorsedThreadIDs(ctx context.Context, threadIDs []string) (map[string]bool, error)
}

// VoteStore enforces one active vote per user per content.
type VoteStore interface {
	// UpdateVote returns false without writing when the operation is a
	// no-op (vote already present, or removal with no vote).
	UpdateVote(ctx context.Context, contentType, contentID, userID, voteType string, removal bool) (bool, error)
	GetUserVotedIDs(ctx context.Context, userID, voteType string) ([]string, error)
}

// FlagStore implements the abuse-flag transitions, including the
// active/inactive stats bookkeeping they imply.
type FlagStore interface {
	FlagAsAbuse(ctx context.Context, contentType, contentID, userID string) error
	UnflagAsAbuse(ctx context.Context, contentType, contentID, userID string) error
	UnflagAllAsAbuse(ctx context.Context, contentType, contentID string) error
	GetAbuseFlaggedCount(ctx context.Context, threadIDs []string) (map[string]int, error)
}

// StatsStore maintains per-(user, course) counters.
type StatsStore interface {
	// UpdateStatsForCourse applies the deltas to an existing row (creating a
	// zeroed one first if absent) and then rebuilds the row from source
	// data; the rebuild result is authoritative.
	UpdateStatsForCourse(ctx context.Context, userID, courseID string, deltas map[string]int) error
	// BuildCourseStats is an idempotent full recompute; concurrent rebuilds
	// of the same pair race last-writer-wins.
	BuildCourseStats(ctx context.Context, authorID, courseID string) (*CourseStats, error)
	UpdateAllUsersInCourse(ctx context.Context, courseID string) ([]string, error)
	GetUserStats(ctx context.Context, courseID string, q UserStatsQuery) (*UserStatsPage, error)
}

// ReadStateStore tracks per-(user, course) last-read timestamps by thread.
type ReadStateStore interface {
	MarkAsRead(ctx context.Context, userID, threadID string) error
	GetReadStates(ctx context.Context, threadIDs []string, userID, courseID string) (map[string]ThreadReadState, error)
	GetUserReadDates(ctx context.Context, userID, courseID string) (map[string]time.Time, error)
}

// SubscriptionStore maps (subscriber, source) pairs.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, subscriberID, sourceID, sourceType string) (*Subscription, error)
	Unsubscribe(ctx context.Context, subscriberID, sourceID string) error
	GetSubscription(ctx context.Context, subscriberID, sourceID string) (*Subscription, error)
	GetSubscribers(ctx context.Context, sourceID string) ([]*Subscription, error)
	FindSubscribedThreadIDs(ctx context.Context, userID, courseID string) ([]string, error)
	DeleteSubscriptionsOfThread(ctx context.Context, threadID string) (int64, error)
	UnsubscribeAllForUser(ctx context.Context, userID string) error
}

// UserStore manages forum-side user records and retirement.
type UserStore interface {
	FindOrCreateUser(ctx context.Context, id, username, email string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// UpdateUser fails with ErrConflictingState when the username belongs to
	// a different user.
	UpdateUser(ctx context.Context, id, username, email string) (int64, error)
	ReplaceUsernameInAllContent(ctx context.Context, userID, newUsername string) error
	RetireAllContent(ctx context.Context, userID, retiredUsername string) error
}

// ThreadQuerier runs the filter/sort/pagination pipeline over candidate
// thread ids.
type ThreadQuerier interface {
	HandleThreadsQuery(ctx context.Context, q ThreadQuery) (*ThreadQueryResult, error)
}

// SearchSource streams content in indexable form for search index builds.
type SearchSource interface {
	// StreamSearchDocuments calls fn for every content record, or only for
	// those updated at or after since when since is non-nil. Streaming stops
	// at the first fn error.
	StreamSearchDocuments(ctx context.Context, since *time.Time, fn func(SearchDocument) error) error
}

// Backend is the full storage contract, implemented by the document store
// and the relational store. One backend is selected per deployment; the two
// are never mixed in a single call.
type Backend interface {
	ContentStore
	VoteStore
	FlagStore
	StatsStore
	ReadStateStore
	SubscriptionStore
	UserStore
	ThreadQuerier
	SearchSource
}
