package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"coursetalk/internal/forum"
)

// contentDoc is the single document shape shared by both content kinds,
// discriminated by the _type field.
type contentDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Type             string             `bson:"_type"`
	CourseID         string             `bson:"course_id"`
	CommentableID    string             `bson:"commentable_id,omitempty"`
	AuthorID         string             `bson:"author_id"`
	AuthorUsername   string             `bson:"author_username"`
	Body             string             `bson:"body"`
	Anonymous        bool               `bson:"anonymous"`
	AnonymousToPeers bool               `bson:"anonymous_to_peers"`
	Visible          bool               `bson:"visible"`

	Votes                   forum.Votes        `bson:"votes"`
	AbuseFlaggers           []string           `bson:"abuse_flaggers"`
	HistoricalAbuseFlaggers []string           `bson:"historical_abuse_flaggers"`
	EditHistory             []forum.EditRecord `bson:"edit_history,omitempty"`

	// Thread fields.
	Title           string    `bson:"title,omitempty"`
	ThreadType      string    `bson:"thread_type,omitempty"`
	Context         string    `bson:"context,omitempty"`
	Closed          bool      `bson:"closed,omitempty"`
	ClosedByID      string    `bson:"closed_by_id,omitempty"`
	CloseReasonCode string    `bson:"close_reason_code,omitempty"`
	Pinned          bool      `bson:"pinned,omitempty"`
	GroupID         *int      `bson:"group_id,omitempty"`
	CommentCount    int       `bson:"comment_count"`
	LastActivityAt  time.Time `bson:"last_activity_at,omitempty"`

	// Comment fields.
	ThreadID        primitive.ObjectID  `bson:"comment_thread_id,omitempty"`
	ParentID        *primitive.ObjectID `bson:"parent_id,omitempty"`
	Depth           int                 `bson:"depth,omitempty"`
	Endorsed        bool                `bson:"endorsed,omitempty"`
	Endorsement     *forum.Endorsement  `bson:"endorsement,omitempty"`
	ChildCount      int                 `bson:"child_count,omitempty"`
	RetiredUsername string              `bson:"retired_username,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func (d *contentDoc) toThread() *forum.Thread {
	return &forum.Thread{
		ID:                      d.ID.Hex(),
		CourseID:                d.CourseID,
		CommentableID:           d.CommentableID,
		AuthorID:                d.AuthorID,
		AuthorUsername:          d.AuthorUsername,
		Title:                   d.Title,
		Body:                    d.Body,
		ThreadType:              d.ThreadType,
		Context:                 d.Context,
		Anonymous:               d.Anonymous,
		AnonymousToPeers:        d.AnonymousToPeers,
		Closed:                  d.Closed,
		ClosedByID:              d.ClosedByID,
		CloseReasonCode:         d.CloseReasonCode,
		Pinned:                  d.Pinned,
		Visible:                 d.Visible,
		GroupID:                 d.GroupID,
		CommentCount:            d.CommentCount,
		Votes:                   forum.BuildVotes(d.Votes.Up, d.Votes.Down),
		AbuseFlaggers:           emptyIfNil(d.AbuseFlaggers),
		HistoricalAbuseFlaggers: emptyIfNil(d.HistoricalAbuseFlaggers),
		EditHistory:             d.EditHistory,
		LastActivityAt:          d.LastActivityAt,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
}

func (d *contentDoc) toComment() *forum.Comment {
	c := &forum.Comment{
		ID:                      d.ID.Hex(),
		ThreadID:                d.ThreadID.Hex(),
		Depth:                   d.Depth,
		CourseID:                d.CourseID,
		AuthorID:                d.AuthorID,
		AuthorUsername:          d.AuthorUsername,
		Body:                    d.Body,
		Anonymous:               d.Anonymous,
		AnonymousToPeers:        d.AnonymousToPeers,
		Endorsed:                d.Endorsed,
		Endorsement:             d.Endorsement,
		ChildCount:              d.ChildCount,
		Visible:                 d.Visible,
		Votes:                   forum.BuildVotes(d.Votes.Up, d.Votes.Down),
		AbuseFlaggers:           emptyIfNil(d.AbuseFlaggers),
		HistoricalAbuseFlaggers: emptyIfNil(d.HistoricalAbuseFlaggers),
		EditHistory:             d.EditHistory,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
	if d.ParentID != nil {
		c.ParentID = d.ParentID.Hex()
	}
	return c
}

// hexIDs converts a Distinct result of object ids to hex strings.
func hexIDs(raw []interface{}) []string {
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if oid, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, oid.Hex())
		}
	}
	return ids
}

// parseOID parses an external content id; invalid ids report as not found.
func parseOID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

// parseOIDs drops unparsable ids silently.
func parseOIDs(ids []string) []primitive.ObjectID {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := parseOID(id); ok {
			oids = append(oids, oid)
		}
	}
	return oids
}
