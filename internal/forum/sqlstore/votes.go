package sqlstore

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursetalk/internal/forum"
)

func (s *Store) contentExists(ctx context.Context, contentType string, pk uint64) error {
	var n int64
	var err error
	switch contentType {
	case forum.ContentTypeThread:
		err = s.db.WithContext(ctx).Model(&threadRow{}).Where("id = ?", pk).Count(&n).Error
	case forum.ContentTypeComment:
		err = s.db.WithContext(ctx).Model(&commentRow{}).Where("id = ?", pk).Count(&n).Error
	default:
		return forum.InvalidArgumentf("content type %q", contentType)
	}
	if err != nil {
		return errors.Wrap(err, "check content")
	}
	if n == 0 {
		return forum.NotFoundf("%s %d", contentType, pk)
	}
	return nil
}

// UpdateVote enforces one active vote per (user, content): an opposite vote
// replaces the old one in a single upsert; a repeat of the current vote, or
// a removal with nothing to remove, is a no-op returning false.
func (s *Store) UpdateVote(ctx context.Context, contentType, contentID, userID, voteType string, removal bool) (bool, error) {
	pk, ok := parsePK(contentID)
	if !ok {
		return false, forum.NotFoundf("%s %q", contentType, contentID)
	}
	if err := s.contentExists(ctx, contentType, pk); err != nil {
		return false, err
	}

	if removal {
		res := s.db.WithContext(ctx).
			Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, pk).
			Delete(&userVoteRow{})
		if res.Error != nil {
			return false, errors.Wrap(res.Error, "remove vote")
		}
		return res.RowsAffected > 0, nil
	}

	var want int
	switch voteType {
	case forum.VoteUp:
		want = 1
	case forum.VoteDown:
		want = -1
	default:
		return false, forum.InvalidArgumentf("vote type %q", voteType)
	}

	var existing userVoteRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, contentType, pk).
		First(&existing).Error
	switch {
	case err == nil:
		if existing.Vote == want {
			return false, nil
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, errors.Wrap(err, "load vote")
	}

	row := userVoteRow{UserID: userID, ContentType: contentType, ContentID: pk, Vote: want}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "content_type"}, {Name: "content_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"vote": want}),
	}).Create(&row).Error
	if err != nil {
		return false, errors.Wrap(err, "upsert vote")
	}
	return true, nil
}

// GetUserVotedIDs lists thread ids the user has voted on in the given
// direction.
func (s *Store) GetUserVotedIDs(ctx context.Context, userID, voteType string) ([]string, error) {
	var want int
	switch voteType {
	case forum.VoteUp:
		want = 1
	case forum.VoteDown:
		want = -1
	default:
		return nil, forum.InvalidArgumentf("vote type %q", voteType)
	}
	var pks []uint64
	err := s.db.WithContext(ctx).Model(&userVoteRow{}).
		Where("user_id = ? AND content_type = ? AND vote = ?", userID, forum.ContentTypeThread, want).
		Pluck("content_id", &pks).Error
	if err != nil {
		return nil, errors.Wrap(err, "list voted threads")
	}
	ids := make([]string, len(pks))
	for i, pk := range pks {
		ids[i] = formatPK(pk)
	}
	return ids, nil
}
