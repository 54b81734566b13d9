// Package store holds the document-store adapters. Core components depend
// only on the narrow interfaces defined here, never on a specific store's
// API; Store is the postgres-backed implementation and MemoryStore is an
// in-process implementation used in tests.
package store

import (
	"context"
	"time"

	"github.com/mwang-dev/friendfeed/model"
	"github.com/pkg/errors"
)

// ErrFanoutCommitted is returned by CommitFanout when a completion marker
// for the post already exists. The batch is rolled back in full; the caller
// should treat the event as already processed.
var ErrFanoutCommitted = errors.New("fanout already committed for post")

// FriendGraph reads a user's directed adjacency list. The returned slice is
// a snapshot; later changes to the friend list are not reflected.
type FriendGraph interface {
	Friends(ctx context.Context, userId string) ([]string, error)
}

// UserStore is the per-document access layer for users.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	UserById(ctx context.Context, userId string) (*model.User, error)
	Users(ctx context.Context) ([]*model.User, error)
}

// PostStore is the per-document access layer for posts.
type PostStore interface {
	CreatePost(ctx context.Context, post *model.Post) error
	PostsByAuthor(ctx context.Context, authorId string) ([]*model.Post, error)
	// DeletePostsBefore hard deletes every post with created_at strictly
	// before cutoff and returns the number of rows removed.
	DeletePostsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationStore persists fanout output and serves the polling read
// model.
type NotificationStore interface {
	// CommitFanout writes the completion marker and the notification batch
	// as a single atomic unit: either marker and every notification are
	// persisted, or none are. Returns ErrFanoutCommitted if a marker for
	// the post already exists.
	CommitFanout(ctx context.Context, marker *model.FanoutMarker, notifications []*model.Notification) error
	FanoutMarker(ctx context.Context, postId string) (*model.FanoutMarker, error)
	NotificationsByRecipient(ctx context.Context, recipientId string) ([]*model.Notification, error)
	CountUnread(ctx context.Context, recipientId string) (int64, error)
	MarkRead(ctx context.Context, recipientId string, notificationIds []string) (int64, error)
}

// ImageStore persists image metadata records.
type ImageStore interface {
	CreateImage(ctx context.Context, image *model.Image) error
}
