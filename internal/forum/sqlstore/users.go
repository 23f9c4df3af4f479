package sqlstore

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursetalk/internal/forum"
)

func userToModel(r userRow) *forum.User {
	return &forum.User{
		ID:             r.ID,
		Username:       r.Username,
		Email:          r.Email,
		DefaultSortKey: r.DefaultSortKey,
	}
}

func (s *Store) FindOrCreateUser(ctx context.Context, id, username, email string) (*forum.User, error) {
	row := userRow{ID: id, Username: username, Email: email, DefaultSortKey: forum.SortKeyDate}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id string) (*forum.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, forum.NotFoundf("user %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return userToModel(row), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*forum.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, forum.NotFoundf("user %q", username)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user by username")
	}
	return userToModel(row), nil
}

// UpdateUser changes the username/email; taking a username already owned by
// a different user is rejected without any write.
func (s *Store) UpdateUser(ctx context.Context, id, username, email string) (int64, error) {
	if username != "" {
		var owner userRow
		err := s.db.WithContext(ctx).First(&owner, "username = ?", username).Error
		if err == nil && owner.ID != id {
			return 0, errors.Wrapf(forum.ErrConflictingState, "username %q taken", username)
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.Wrap(err, "check username")
		}
	}
	changes := map[string]interface{}{}
	if username != "" {
		changes["username"] = username
	}
	if email != "" {
		changes["email"] = email
	}
	if len(changes) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "update user")
	}
	return res.RowsAffected, nil
}

// ReplaceUsernameInAllContent rewrites the denormalized author_username on
// everything the user authored.
func (s *Store) ReplaceUsernameInAllContent(ctx context.Context, userID, newUsername string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&threadRow{}).Where("author_id = ?", userID).
			UpdateColumn("author_username", newUsername).Error; err != nil {
			return errors.Wrap(err, "replace username on threads")
		}
		if err := tx.Model(&commentRow{}).Where("author_id = ?", userID).
			UpdateColumn("author_username", newUsername).Error; err != nil {
			return errors.Wrap(err, "replace username on comments")
		}
		return nil
	})
}

// RetireAllContent blanks the user's content for retirement: bodies are
// replaced with the retirement sentinel and the denormalized username is
// removed (comments keep it aside in retired_username, as the migration
// tooling expects).
func (s *Store) RetireAllContent(ctx context.Context, userID, retiredUsername string) error {
	const retiredBody = "[deleted]"
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&threadRow{}).Where("author_id = ?", userID).
			UpdateColumns(map[string]interface{}{
				"author_username": retiredUsername,
				"body":            retiredBody,
			}).Error; err != nil {
			return errors.Wrap(err, "retire threads")
		}
		if err := tx.Model(&commentRow{}).Where("author_id = ?", userID).
			UpdateColumns(map[string]interface{}{
				"retired_username": gorm.Expr("author_username"),
				"author_username":  retiredUsername,
				"body":             retiredBody,
			}).Error; err != nil {
			return errors.Wrap(err, "retire comments")
		}
		return nil
	})
}
