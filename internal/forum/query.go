package forum

import "math"

// Sort keys accepted by HandleThreadsQuery.
const (
	SortKeyDate     = "date"
	SortKeyActivity = "activity"
	SortKeyVotes    = "votes"
	SortKeyComments = "comments"
)

// User-stats sort keys.
const (
	UserStatsSortActivity = "activity"
	UserStatsSortRecency  = "recency"
	UserStatsSortFlagged  = "flagged"
)

// SortField maps a caller-facing sort key to the canonical thread field the
// backends order by. Unknown keys fall back to the date ordering.
func SortField(sortKey string) string {
	switch sortKey {
	case SortKeyActivity:
		return "last_activity_at"
	case SortKeyVotes:
		return "votes.point"
	case SortKeyComments:
		return "comment_count"
	default:
		return "created_at"
	}
}

// NeedsCreatedAtTieBreak reports whether the mapped sort field gets a
// secondary created_at descending ordering. Only the two non-time keys do;
// time-ordered keys are already total enough in practice.
func NeedsCreatedAtTieBreak(field string) bool {
	return field != "created_at" && field != "last_activity_at"
}

// ThreadQuery is the full parameter set of the thread query engine.
type ThreadQuery struct {
	ThreadIDs  []string
	UserID     string
	CourseID   string
	GroupIDs   []int
	AuthorID   string
	ThreadType string

	Flagged      bool
	Unread       bool
	Unanswered   bool
	Unresponded  bool
	CountFlagged bool

	SortKey string
	Page    int
	PerPage int
	Context string

	// RawQuery skips pagination and presentation, returning the matched
	// threads as-is for the caller to post-process.
	RawQuery bool
}

// AnnotatedThread is a thread with its bulk presentation annotations.
type AnnotatedThread struct {
	*Thread
	IsRead             bool `json:"read"`
	UnreadCommentCount int  `json:"unread_comment_count"`
	EndorsedResponse   bool `json:"endorsed"`
	AbuseFlaggedCount  int  `json:"abuse_flagged_count,omitempty"`
}

// ThreadQueryResult is the paginated output of the query engine.
//
// When the unread filter is active the engine cannot compute a true total:
// NumPages is then Page or Page+1 ("more may exist") and Approximate is set
// so callers do not treat it as an exact page count.
type ThreadQueryResult struct {
	Collection  []*AnnotatedThread `json:"collection"`
	Raw         []*Thread          `json:"result,omitempty"`
	Page        int                `json:"page"`
	NumPages    int                `json:"num_pages"`
	ThreadCount int64              `json:"thread_count"`
	Approximate bool               `json:"approximate_num_pages,omitempty"`
}

// NumPages computes an exact page total, never less than 1.
func NumPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(total) / float64(perPage)))
	if n < 1 {
		return 1
	}
	return n
}

// UserStatsQuery selects and paginates per-user course stats.
type UserStatsQuery struct {
	SortKey string
	Page    int
	PerPage int
	// Usernames, when non-empty, restricts the listing to those users.
	Usernames []string
}

// UserStatsPage is one page of per-user course stats.
type UserStatsPage struct {
	Stats    []*CourseStats `json:"user_stats"`
	Page     int            `json:"page"`
	NumPages int            `json:"num_pages"`
	Count    int64          `json:"count"`
}
