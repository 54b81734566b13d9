package store

import (
	"context"
	"time"

	"github.com/mwang-dev/friendfeed/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements every adapter interface on top of a gorm postgres
// connection.
type Store struct {
	db *gorm.DB
}

var (
	_ FriendGraph       = (*Store)(nil)
	_ UserStore         = (*Store)(nil)
	_ PostStore         = (*Store)(nil)
	_ NotificationStore = (*Store)(nil)
	_ ImageStore        = (*Store)(nil)
)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	// ON CONFLICT DO NOTHING instead of a raw insert so a duplicate email
	// surfaces as zero affected rows rather than a driver-specific error.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if res.Error != nil {
		return errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(model.ErrConflict, "user with email %s already exists", user.Email)
	}
	return nil
}

func (s *Store) UserById(ctx context.Context, userId string) (*model.User, error) {
	var user model.User
	res := s.db.WithContext(ctx).Where("id = ?", userId).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(model.ErrNotFound, "user %s", userId)
		}
		return nil, errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	return &user, nil
}

func (s *Store) Users(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, errors.Wrap(model.ErrUnavailable, err.Error())
	}
	return users, nil
}

// Friends snapshot-reads the author's adjacency list at call time.
func (s *Store) Friends(ctx context.Context, userId string) ([]string, error) {
	user, err := s.UserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	return user.FriendIds(), nil
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return errors.Wrap(model.ErrUnavailable, err.Error())
	}
	return nil
}

func (s *Store) PostsByAuthor(ctx context.Context, authorId string) ([]*model.Post, error) {
	var posts []*model.Post
	res := s.db.WithContext(ctx).
		Where("author_id = ?", authorId).
		Order("created_at desc").
		Order("id asc").
		Find(&posts)
	if res.Error != nil {
		return nil, errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	return posts, nil
}

func (s *Store) DeletePostsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.Post{})
	if res.Error != nil {
		return 0, errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	return res.RowsAffected, nil
}

// CommitFanout writes marker plus batch in one transaction. The marker
// insert uses ON CONFLICT DO NOTHING on its primary key; zero affected rows
// means another delivery of the same event got there first, and returning
// an error from the closure rolls the whole batch back.
func (s *Store) CommitFanout(ctx context.Context, marker *model.FanoutMarker, notifications []*model.Notification) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(marker)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrFanoutCommitted
		}
		if len(notifications) == 0 {
			return nil
		}
		return tx.Create(&notifications).Error
	})
	if err == nil || errors.Is(err, ErrFanoutCommitted) {
		return err
	}
	return errors.Wrap(model.ErrUnavailable, err.Error())
}

func (s *Store) FanoutMarker(ctx context.Context, postId string) (*model.FanoutMarker, error) {
	var marker model.FanoutMarker
	res := s.db.WithContext(ctx).Where("post_id = ?", postId).First(&marker)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(model.ErrNotFound, "fanout marker for post %s", postId)
		}
		return nil, errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	return &marker, nil
}

func (s *Store) NotificationsByRecipient(ctx context.Context, recipientId string) ([]*model.Notification, error) {
	var notifications []*model.Notification
	res := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientId).
		Order("created_at desc").
		Order("id asc").
		Find(&notifications)
	if res.Error != nil {
		return nil, errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	return notifications, nil
}

func (s *Store) CountUnread(ctx context.Context, recipientId string) (int64, error) {
	var count int64
	res := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND NOT read", recipientId).
		Count(&count)
	if res.Error != nil {
		return 0, errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	return count, nil
}

func (s *Store) MarkRead(ctx context.Context, recipientId string, notificationIds []string) (int64, error) {
	if len(notificationIds) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND id IN ? AND NOT read", recipientId, notificationIds).
		Update("read", true)
	if res.Error != nil {
		return 0, errors.Wrap(model.ErrUnavailable, res.Error.Error())
	}
	return res.RowsAffected, nil
}

func (s *Store) CreateImage(ctx context.Context, image *model.Image) error {
	if err := s.db.WithContext(ctx).Create(image).Error; err != nil {
		return errors.Wrap(model.ErrUnavailable, err.Error())
	}
	return nil
}
