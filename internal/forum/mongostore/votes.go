package mongostore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"coursetalk/internal/forum"
)

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func remove(ss []string, s string) []string {
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// UpdateVote keeps the two vote sets exclusive: casting moves the user into
// the target set and out of the other one; removal drops the user from
// whichever set holds them. No-ops return false without writing.
func (s *Store) UpdateVote(ctx context.Context, contentType, contentID, userID, voteType string, removal bool) (bool, error) {
	doc, err := s.getDoc(ctx, contentType, contentID)
	if err != nil {
		return false, err
	}

	up := emptyIfNil(doc.Votes.Up)
	down := emptyIfNil(doc.Votes.Down)
	inUp := contains(up, userID)
	inDown := contains(down, userID)

	if removal {
		if !inUp && !inDown {
			return false, nil
		}
		up = remove(up, userID)
		down = remove(down, userID)
	} else {
		switch voteType {
		case forum.VoteUp:
			if inUp {
				return false, nil
			}
			up = append(up, userID)
			down = remove(down, userID)
		case forum.VoteDown:
			if inDown {
				return false, nil
			}
			down = append(down, userID)
			up = remove(up, userID)
		default:
			return false, forum.InvalidArgumentf("vote type %q", voteType)
		}
	}

	_, err = s.contents.UpdateByID(ctx, doc.ID, bson.M{
		"$set": bson.M{"votes": forum.BuildVotes(up, down)},
	})
	if err != nil {
		return false, errors.Wrap(err, "update vote")
	}
	return true, nil
}

// GetUserVotedIDs lists thread ids the user voted on in the given direction.
func (s *Store) GetUserVotedIDs(ctx context.Context, userID, voteType string) ([]string, error) {
	var field string
	switch voteType {
	case forum.VoteUp:
		field = "votes.up"
	case forum.VoteDown:
		field = "votes.down"
	default:
		return nil, forum.InvalidArgumentf("vote type %q", voteType)
	}
	raw, err := s.contents.Distinct(ctx, "_id", bson.M{
		"_type": forum.ContentTypeThread,
		field:   userID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list voted threads")
	}
	return hexIDs(raw), nil
}
