package sqlstore

import (
	"time"
)

// Rows mirror the normalized relational schema. External ids are the decimal
// string form of the integer primary keys; vote sets, abuse flaggers and edit
// history live in their own tables and are folded back into the shared
// records on read.

type userRow struct {
	ID             string `gorm:"primaryKey;size:255"`
	Username       string `gorm:"uniqueIndex;size:255;not null"`
	Email          string `gorm:"size:255"`
	DefaultSortKey string `gorm:"size:25;not null;default:date"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userRow) TableName() string { return "forum_users" }

type threadRow struct {
	ID               uint64 `gorm:"primaryKey"`
	CourseID         string `gorm:"size:255;not null;index:idx_threads_course_type"`
	CommentableID    string `gorm:"size:255;index"`
	AuthorID         string `gorm:"size:255;not null;index"`
	AuthorUsername   string `gorm:"size:255"`
	Title            string `gorm:"not null"`
	Body             string `gorm:"type:text"`
	ThreadType       string `gorm:"size:20;not null;default:discussion;index:idx_threads_course_type"`
	Context          string `gorm:"size:20;not null;default:course"`
	Anonymous        bool   `gorm:"default:false"`
	AnonymousToPeers bool   `gorm:"default:false"`
	Closed           bool   `gorm:"default:false"`
	ClosedByID       string `gorm:"size:255"`
	CloseReasonCode  string `gorm:"size:255"`
	Pinned           bool   `gorm:"default:false"`
	Visible          bool   `gorm:"default:true"`
	GroupID          *int   `gorm:"index"`
	CommentCount     int    `gorm:"default:0"`
	LastActivityAt   time.Time `gorm:"index"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
}

func (threadRow) TableName() string { return "comment_threads" }

type commentRow struct {
	ID               uint64  `gorm:"primaryKey"`
	ThreadID         uint64  `gorm:"not null;index"`
	ParentID         *uint64 `gorm:"index"`
	Depth            int     `gorm:"default:0"`
	CourseID         string  `gorm:"size:255;not null;index"`
	AuthorID         string  `gorm:"size:255;not null;index"`
	AuthorUsername   string  `gorm:"size:255"`
	Body             string  `gorm:"type:text"`
	Anonymous        bool    `gorm:"default:false"`
	AnonymousToPeers bool    `gorm:"default:false"`
	Endorsed         bool    `gorm:"default:false;index"`
	EndorsementUserID string `gorm:"size:255"`
	EndorsementAt    *time.Time
	ChildCount       int  `gorm:"default:0"`
	Visible          bool `gorm:"default:true"`
	RetiredUsername  string `gorm:"size:255"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
}

func (commentRow) TableName() string { return "comments" }

// userVoteRow keeps one active vote per (user, content); the unique index is
// what makes concurrent vote flips safe.
type userVoteRow struct {
	ID          uint64 `gorm:"primaryKey"`
	UserID      string `gorm:"size:255;not null;uniqueIndex:idx_user_vote,priority:1"`
	ContentType string `gorm:"size:30;not null;uniqueIndex:idx_user_vote,priority:2"`
	ContentID   uint64 `gorm:"not null;uniqueIndex:idx_user_vote,priority:3;index"`
	Vote        int    `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (userVoteRow) TableName() string { return "user_votes" }

type abuseFlaggerRow struct {
	ID          uint64 `gorm:"primaryKey"`
	UserID      string `gorm:"size:255;not null;uniqueIndex:idx_abuse_flagger,priority:1"`
	ContentType string `gorm:"size:30;not null;uniqueIndex:idx_abuse_flagger,priority:2"`
	ContentID   uint64 `gorm:"not null;uniqueIndex:idx_abuse_flagger,priority:3;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (abuseFlaggerRow) TableName() string { return "abuse_flaggers" }

type historicalAbuseFlaggerRow struct {
	ID          uint64 `gorm:"primaryKey"`
	UserID      string `gorm:"size:255;not null;uniqueIndex:idx_historical_flagger,priority:1"`
	ContentType string `gorm:"size:30;not null;uniqueIndex:idx_historical_flagger,priority:2"`
	ContentID   uint64 `gorm:"not null;uniqueIndex:idx_historical_flagger,priority:3;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (historicalAbuseFlaggerRow) TableName() string { return "historical_abuse_flaggers" }

type editHistoryRow struct {
	ID             uint64 `gorm:"primaryKey"`
	ContentType    string `gorm:"size:30;not null;index:idx_edit_history_content"`
	ContentID      uint64 `gorm:"not null;index:idx_edit_history_content"`
	EditorID       string `gorm:"size:255"`
	EditorUsername string `gorm:"size:255"`
	OriginalBody   string `gorm:"type:text"`
	ReasonCode     string `gorm:"size:255"`
	CreatedAt      time.Time
}

func (editHistoryRow) TableName() string { return "edit_histories" }

type courseStatRow struct {
	ID             uint64 `gorm:"primaryKey"`
	UserID         string `gorm:"size:255;not null;uniqueIndex:idx_course_stat,priority:1"`
	CourseID       string `gorm:"size:255;not null;uniqueIndex:idx_course_stat,priority:2;index"`
	Threads        int    `gorm:"default:0"`
	Responses      int    `gorm:"default:0"`
	Replies        int    `gorm:"default:0"`
	ActiveFlags    int    `gorm:"default:0"`
	InactiveFlags  int    `gorm:"default:0"`
	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (courseStatRow) TableName() string { return "course_stats" }

type readStateRow struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    string `gorm:"size:255;not null;uniqueIndex:idx_read_state,priority:1"`
	CourseID  string `gorm:"size:255;not null;uniqueIndex:idx_read_state,priority:2"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (readStateRow) TableName() string { return "read_states" }

type lastReadTimeRow struct {
	ID          uint64 `gorm:"primaryKey"`
	ReadStateID uint64 `gorm:"not null;uniqueIndex:idx_last_read,priority:1"`
	ThreadID    uint64 `gorm:"not null;uniqueIndex:idx_last_read,priority:2;index"`
	Timestamp   time.Time `gorm:"not null"`
}

func (lastReadTimeRow) TableName() string { return "last_read_times" }

type subscriptionRow struct {
	ID           uint64 `gorm:"primaryKey"`
	SubscriberID string `gorm:"size:255;not null;uniqueIndex:idx_subscription,priority:1;index"`
	SourceID     uint64 `gorm:"not null;uniqueIndex:idx_subscription,priority:2;index"`
	SourceType   string `gorm:"size:30;not null;uniqueIndex:idx_subscription,priority:3"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (subscriptionRow) TableName() string { return "subscriptions" }
