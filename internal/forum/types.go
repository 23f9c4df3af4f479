package forum

import (
	"time"
)

// Content kind discriminators, shared by votes, flags and edit history.
const (
	ContentTypeThread  = "CommentThread"
	ContentTypeComment = "Comment"
)

// Thread types and contexts accepted on insert.
const (
	ThreadTypeDiscussion = "discussion"
	ThreadTypeQuestion   = "question"

	ContextCourse     = "course"
	ContextStandalone = "standalone"
)

// Vote directions.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

func ValidThreadType(s string) bool {
	return s == ThreadTypeDiscussion || s == ThreadTypeQuestion
}

func ValidContext(s string) bool {
	return s == ContextCourse || s == ContextStandalone
}

// Votes is the derived vote tally exchanged with callers. Point is always
// UpCount - DownCount; the document backend stores the whole structure, the
// relational backend aggregates it from per-user vote rows on read.
type Votes struct {
	Up        []string `json:"up" bson:"up"`
	Down      []string `json:"down" bson:"down"`
	UpCount   int      `json:"up_count" bson:"up_count"`
	DownCount int      `json:"down_count" bson:"down_count"`
	Count     int      `json:"count" bson:"count"`
	Point     int      `json:"point" bson:"point"`
}

// BuildVotes derives the tally from the two membership sets.
func BuildVotes(up, down []string) Votes {
	if up == nil {
		up = []string{}
	}
	if down == nil {
		down = []string{}
	}
	return Votes{
		Up:        up,
		Down:      down,
		UpCount:   len(up),
		DownCount: len(down),
		Count:     len(up) + len(down),
		Point:     len(up) - len(down),
	}
}

// EditRecord is one entry of a content's edit history, appended whenever a
// body-changing update carries an editing user.
type EditRecord struct {
	EditorID       string    `json:"editor_id" bson:"editor_id"`
	EditorUsername string    `json:"editor_username" bson:"editor_username"`
	OriginalBody   string    `json:"original_body" bson:"original_body"`
	ReasonCode     string    `json:"reason_code,omitempty" bson:"reason_code,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Endorsement records who endorsed a comment and when.
type Endorsement struct {
	UserID string    `json:"user_id" bson:"user_id"`
	Time   time.Time `json:"time" bson:"time"`
}

// Thread is a top-level discussion post.
type Thread struct {
	ID                      string       `json:"id" bson:"_id"`
	CourseID                string       `json:"course_id" bson:"course_id"`
	CommentableID           string       `json:"commentable_id" bson:"commentable_id"`
	AuthorID                string       `json:"user_id" bson:"author_id"`
	AuthorUsername          string       `json:"username" bson:"author_username"`
	Title                   string       `json:"title" bson:"title"`
	Body                    string       `json:"body" bson:"body"`
	ThreadType              string       `json:"thread_type" bson:"thread_type"`
	Context                 string       `json:"context" bson:"context"`
	Anonymous               bool         `json:"anonymous" bson:"anonymous"`
	AnonymousToPeers        bool         `json:"anonymous_to_peers" bson:"anonymous_to_peers"`
	Closed                  bool         `json:"closed" bson:"closed"`
	ClosedByID              string       `json:"closed_by,omitempty" bson:"closed_by_id,omitempty"`
	CloseReasonCode         string       `json:"close_reason_code,omitempty" bson:"close_reason_code,omitempty"`
	Pinned                  bool         `json:"pinned" bson:"pinned"`
	Visible                 bool         `json:"visible" bson:"visible"`
	GroupID                 *int         `json:"group_id,omitempty" bson:"group_id,omitempty"`
	CommentCount            int          `json:"comments_count" bson:"comment_count"`
	Votes                   Votes        `json:"votes" bson:"votes"`
	AbuseFlaggers           []string     `json:"abuse_flaggers" bson:"abuse_flaggers"`
	HistoricalAbuseFlaggers []string     `json:"historical_abuse_flaggers" bson:"historical_abuse_flaggers"`
	EditHistory             []EditRecord `json:"edit_history,omitempty" bson:"edit_history,omitempty"`
	LastActivityAt          time.Time    `json:"last_activity_at" bson:"last_activity_at"`
	CreatedAt               time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at" bson:"updated_at"`
}

// Comment is a response (depth 0) or reply (depth 1) attached to a thread.
type Comment struct {
	ID                      string       `json:"id" bson:"_id"`
	ThreadID                string       `json:"thread_id" bson:"comment_thread_id"`
	ParentID                string       `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	Depth                   int          `json:"depth" bson:"depth"`
	CourseID                string       `json:"course_id" bson:"course_id"`
	AuthorID                string       `json:"user_id" bson:"author_id"`
	AuthorUsername          string       `json:"username" bson:"author_username"`
	Body                    string       `json:"body" bson:"body"`
	Anonymous               bool         `json:"anonymous" bson:"anonymous"`
	AnonymousToPeers        bool         `json:"anonymous_to_peers" bson:"anonymous_to_peers"`
	Endorsed                bool         `json:"endorsed" bson:"endorsed"`
	Endorsement             *Endorsement `json:"endorsement,omitempty" bson:"endorsement,omitempty"`
	ChildCount              int          `json:"child_count" bson:"child_count"`
	Visible                 bool         `json:"visible" bson:"visible"`
	Votes                   Votes        `json:"votes" bson:"votes"`
	AbuseFlaggers           []string     `json:"abuse_flaggers" bson:"abuse_flaggers"`
	HistoricalAbuseFlaggers []string     `json:"historical_abuse_flaggers" bson:"historical_abuse_flaggers"`
	EditHistory             []EditRecord `json:"edit_history,omitempty" bson:"edit_history,omitempty"`
	CreatedAt               time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at" bson:"updated_at"`
}

// User is the forum-side record of an externally-authenticated user.
type User struct {
	ID             string `json:"id" bson:"external_id"`
	Username       string `json:"username" bson:"username"`
	Email          string `json:"email,omitempty" bson:"email,omitempty"`
	DefaultSortKey string `json:"default_sort_key" bson:"default_sort_key"`
}

// CourseStats is the per-(user, course) counter row.
type CourseStats struct {
	Username       string     `json:"username" bson:"username"`
	CourseID       string     `json:"course_id" bson:"course_id"`
	Threads        int        `json:"threads" bson:"threads"`
	Responses      int        `json:"responses" bson:"responses"`
	Replies        int        `json:"replies" bson:"replies"`
	ActiveFlags    int        `json:"active_flags" bson:"active_flags"`
	InactiveFlags  int        `json:"inactive_flags" bson:"inactive_flags"`
	LastActivityAt *time.Time `json:"last_activity_at" bson:"last_activity_at"`
}

// Stats delta field names accepted by UpdateStatsForCourse.
const (
	StatThreads       = "threads"
	StatResponses     = "responses"
	StatReplies       = "replies"
	StatActiveFlags   = "active_flags"
	StatInactiveFlags = "inactive_flags"
)

// Subscription maps a subscriber to a source (currently always a thread).
type Subscription struct {
	SubscriberID string    `json:"subscriber_id" bson:"subscriber_id"`
	SourceID     string    `json:"source_id" bson:"source_id"`
	SourceType   string    `json:"source_type" bson:"source_type"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// ThreadReadState is the bulk read-state annotation for one thread.
type ThreadReadState struct {
	IsRead             bool `json:"is_read"`
	UnreadCommentCount int  `json:"unread_comment_count"`
}

// CommentableCounts groups thread counts per commentable by thread type.
type CommentableCounts struct {
	Discussion int `json:"discussion"`
	Question   int `json:"question"`
}

// ThreadFields carries the validated inputs of InsertThread.
type ThreadFields struct {
	CourseID         string
	CommentableID    string
	AuthorID         string
	AuthorUsername   string
	Title            string
	Body             string
	ThreadType       string
	Context          string
	Anonymous        bool
	AnonymousToPeers bool
	GroupID          *int
}

// ThreadUpdate lists the fields an update may change; nil means "leave as is".
type ThreadUpdate struct {
	Title            *string
	Body             *string
	CommentableID    *string
	ThreadType       *string
	Anonymous        *bool
	AnonymousToPeers *bool
	Closed           *bool
	ClosedByID       *string
	CloseReasonCode  *string
	Pinned           *bool
	Visible          *bool

	// Editing user, recorded in edit history when Body changes.
	EditingUserID       string
	EditingUserUsername string
	EditReasonCode      string
}

// CommentFields carries the validated inputs of InsertComment.
type CommentFields struct {
	ThreadID         string
	ParentID         string
	CourseID         string
	AuthorID         string
	AuthorUsername   string
	Body             string
	Anonymous        bool
	AnonymousToPeers bool
}

// CommentUpdate lists the fields a comment update may change.
type CommentUpdate struct {
	Body      *string
	Anonymous *bool
	Visible   *bool

	// Endorsed=true together with EndorsementUserID sets the endorsement
	// record; Endorsed=false (or a missing user id) clears it.
	Endorsed          *bool
	EndorsementUserID string

	EditingUserID       string
	EditingUserUsername string
	EditReasonCode      string
}

// SearchDocument is the flattened indexable shape of one content record.
// Thread documents carry title, comment documents carry the owning thread.
type SearchDocument struct {
	ID             string     `json:"id"`
	ContentType    string     `json:"content_type"`
	ThreadID       string     `json:"comment_thread_id,omitempty"`
	CourseID       string     `json:"course_id"`
	CommentableID  string     `json:"commentable_id,omitempty"`
	Context        string     `json:"context,omitempty"`
	GroupID        *int       `json:"group_id,omitempty"`
	AuthorID       string     `json:"author_id"`
	Title          string     `json:"title,omitempty"`
	Body           string     `json:"body"`
	CommentCount   int        `json:"comment_count,omitempty"`
	VotesPoint     int        `json:"votes_point,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
