package sqlstore

import (
	"context"

	"github.com/pkg/errors"

	"coursetalk/internal/forum"
)

// contentExtras folds vote, flagger and edit-history rows back into the
// shared records, bulk-loaded per id set to avoid N+1 reads.
type contentExtras struct {
	votes      map[uint64]forum.Votes
	flaggers   map[uint64][]string
	historical map[uint64][]string
	edits      map[uint64][]forum.EditRecord
}

func (s *Store) loadExtras(ctx context.Context, contentType string, ids []uint64) (*contentExtras, error) {
	ex := &contentExtras{
		votes:      map[uint64]forum.Votes{},
		flaggers:   map[uint64][]string{},
		historical: map[uint64][]string{},
		edits:      map[uint64][]forum.EditRecord{},
	}
	if len(ids) == 0 {
		return ex, nil
	}
	db := s.db.WithContext(ctx)

	var votes []userVoteRow
	if err := db.Where("content_type = ? AND content_id IN ?", contentType, ids).
		Order("id ASC").Find(&votes).Error; err != nil {
		return nil, errors.Wrap(err, "load votes")
	}
	up := map[uint64][]string{}
	down := map[uint64][]string{}
	for _, v := range votes {
		if v.Vote > 0 {
			up[v.ContentID] = append(up[v.ContentID], v.UserID)
		} else {
			down[v.ContentID] = append(down[v.ContentID], v.UserID)
		}
	}
	for _, id := range ids {
		ex.votes[id] = forum.BuildVotes(up[id], down[id])
	}

	var flaggers []abuseFlaggerRow
	if err := db.Where("content_type = ? AND content_id IN ?", contentType, ids).
		Order("id ASC").Find(&flaggers).Error; err != nil {
		return nil, errors.Wrap(err, "load abuse flaggers")
	}
	for _, f := range flaggers {
		ex.flaggers[f.ContentID] = append(ex.flaggers[f.ContentID], f.UserID)
	}

	var historical []historicalAbuseFlaggerRow
	if err := db.Where("content_type = ? AND content_id IN ?", contentType, ids).
		Order("id ASC").Find(&historical).Error; err != nil {
		return nil, errors.Wrap(err, "load historical flaggers")
	}
	for _, f := range historical {
		ex.historical[f.ContentID] = append(ex.historical[f.ContentID], f.UserID)
	}

	var edits []editHistoryRow
	if err := db.Where("content_type = ? AND content_id IN ?", contentType, ids).
		Order("id ASC").Find(&edits).Error; err != nil {
		return nil, errors.Wrap(err, "load edit history")
	}
	for _, e := range edits {
		ex.edits[e.ContentID] = append(ex.edits[e.ContentID], forum.EditRecord{
			EditorID:       e.EditorID,
			EditorUsername: e.EditorUsername,
			OriginalBody:   e.OriginalBody,
			ReasonCode:     e.ReasonCode,
			CreatedAt:      e.CreatedAt,
		})
	}
	return ex, nil
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func (s *Store) threadsToModels(ctx context.Context, rows []threadRow) ([]*forum.Thread, error) {
	ids := make([]uint64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	ex, err := s.loadExtras(ctx, forum.ContentTypeThread, ids)
	if err != nil {
		return nil, err
	}
	threads := make([]*forum.Thread, len(rows))
	for i := range rows {
		r := rows[i]
		threads[i] = &forum.Thread{
			ID:                      formatPK(r.ID),
			CourseID:                r.CourseID,
			CommentableID:           r.CommentableID,
			AuthorID:                r.AuthorID,
			AuthorUsername:          r.AuthorUsername,
			Title:                   r.Title,
			Body:                    r.Body,
			ThreadType:              r.ThreadType,
			Context:                 r.Context,
			Anonymous:               r.Anonymous,
			AnonymousToPeers:        r.AnonymousToPeers,
			Closed:                  r.Closed,
			ClosedByID:              r.ClosedByID,
			CloseReasonCode:         r.CloseReasonCode,
			Pinned:                  r.Pinned,
			Visible:                 r.Visible,
			GroupID:                 r.GroupID,
			CommentCount:            r.CommentCount,
			Votes:                   ex.votes[r.ID],
			AbuseFlaggers:           emptyIfNil(ex.flaggers[r.ID]),
			HistoricalAbuseFlaggers: emptyIfNil(ex.historical[r.ID]),
			EditHistory:             ex.edits[r.ID],
			LastActivityAt:          r.LastActivityAt,
			CreatedAt:               r.CreatedAt,
			UpdatedAt:               r.UpdatedAt,
		}
	}
	return threads, nil
}

func (s *Store) commentsToModels(ctx context.Context, rows []commentRow) ([]*forum.Comment, error) {
	ids := make([]uint64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	ex, err := s.loadExtras(ctx, forum.ContentTypeComment, ids)
	if err != nil {
		return nil, err
	}
	comments := make([]*forum.Comment, len(rows))
	for i := range rows {
		r := rows[i]
		c := &forum.Comment{
			ID:                      formatPK(r.ID),
			ThreadID:                formatPK(r.ThreadID),
			Depth:                   r.Depth,
			CourseID:                r.CourseID,
			AuthorID:                r.AuthorID,
			AuthorUsername:          r.AuthorUsername,
			Body:                    r.Body,
			Anonymous:               r.Anonymous,
			AnonymousToPeers:        r.AnonymousToPeers,
			Endorsed:                r.Endorsed,
			ChildCount:              r.ChildCount,
			Visible:                 r.Visible,
			Votes:                   ex.votes[r.ID],
			AbuseFlaggers:           emptyIfNil(ex.flaggers[r.ID]),
			HistoricalAbuseFlaggers: emptyIfNil(ex.historical[r.ID]),
			EditHistory:             ex.edits[r.ID],
			CreatedAt:               r.CreatedAt,
			UpdatedAt:               r.UpdatedAt,
		}
		if r.ParentID != nil {
			c.ParentID = formatPK(*r.ParentID)
		}
		if r.Endorsed && r.EndorsementUserID != "" && r.EndorsementAt != nil {
			c.Endorsement = &forum.Endorsement{UserID: r.EndorsementUserID, Time: *r.EndorsementAt}
		}
		comments[i] = c
	}
	return comments, nil
}
