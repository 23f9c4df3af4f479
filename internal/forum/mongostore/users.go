package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coursetalk/internal/forum"
)

// userDoc embeds read states and course stats, one element per course.
type userDoc struct {
	ID             string          `bson:"_id"`
	Username       string          `bson:"username"`
	Email          string          `bson:"email,omitempty"`
	DefaultSortKey string          `bson:"default_sort_key"`
	ReadStates     []readStateDoc  `bson:"read_states,omitempty"`
	CourseStats    []courseStatDoc `bson:"course_stats,omitempty"`
	CreatedAt      time.Time       `bson:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at"`
}

type readStateDoc struct {
	CourseID      string               `bson:"course_id"`
	LastReadTimes map[string]time.Time `bson:"last_read_times"`
}

type courseStatDoc struct {
	CourseID       string     `bson:"course_id"`
	Threads        int        `bson:"threads"`
	Responses      int        `bson:"responses"`
	Replies        int        `bson:"replies"`
	ActiveFlags    int        `bson:"active_flags"`
	InactiveFlags  int        `bson:"inactive_flags"`
	LastActivityAt *time.Time `bson:"last_activity_at"`
}

func (d *userDoc) toModel() *forum.User {
	return &forum.User{
		ID:             d.ID,
		Username:       d.Username,
		Email:          d.Email,
		DefaultSortKey: d.DefaultSortKey,
	}
}

func (s *Store) getUserDoc(ctx context.Context, id string) (*userDoc, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, forum.NotFoundf("user %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return &doc, nil
}

func (s *Store) FindOrCreateUser(ctx context.Context, id, username, email string) (*forum.User, error) {
	now := time.Now().UTC()
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$setOnInsert": bson.M{
				"username":         username,
				"email":            email,
				"default_sort_key": forum.SortKeyDate,
				"read_states":      []readStateDoc{},
				"course_stats":     []courseStatDoc{},
				"created_at":       now,
				"updated_at":       now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "upsert user")
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id string) (*forum.User, error) {
	doc, err := s.getUserDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*forum.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, forum.NotFoundf("user %q", username)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user by username")
	}
	return doc.toModel(), nil
}

func (s *Store) UpdateUser(ctx context.Context, id, username, email string) (int64, error) {
	if username != "" {
		var owner userDoc
		err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&owner)
		if err == nil && owner.ID != id {
			return 0, errors.Wrapf(forum.ErrConflictingState, "username %q taken", username)
		}
		if err != nil && err != mongo.ErrNoDocuments {
			return 0, errors.Wrap(err, "check username")
		}
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	if username != "" {
		set["username"] = username
	}
	if email != "" {
		set["email"] = email
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return 0, errors.Wrap(err, "update user")
	}
	return res.ModifiedCount, nil
}

func (s *Store) ReplaceUsernameInAllContent(ctx context.Context, userID, newUsername string) error {
	_, err := s.contents.UpdateMany(ctx,
		bson.M{"author_id": userID},
		bson.M{"$set": bson.M{"author_username": newUsername}},
	)
	return errors.Wrap(err, "replace username in content")
}

// RetireAllContent blanks the user's content: bodies get the retirement
// sentinel and comments keep the old username aside in retired_username.
func (s *Store) RetireAllContent(ctx context.Context, userID, retiredUsername string) error {
	const retiredBody = "[deleted]"
	_, err := s.contents.UpdateMany(ctx,
		bson.M{"author_id": userID, "_type": forum.ContentTypeComment},
		mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"retired_username": "$author_username",
				"author_username":  retiredUsername,
				"body":             retiredBody,
			}}},
		},
	)
	if err != nil {
		return errors.Wrap(err, "retire comments")
	}
	_, err = s.contents.UpdateMany(ctx,
		bson.M{"author_id": userID, "_type": forum.ContentTypeThread},
		bson.M{"$set": bson.M{"author_username": retiredUsername, "body": retiredBody}},
	)
	return errors.Wrap(err, "retire threads")
}
