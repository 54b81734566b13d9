// Package fanout implements the event-driven notification fanout: one
// PostCreated event in, one notification per friend of the author out,
// committed all-or-nothing and idempotent under redelivery.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mwang-dev/friendfeed/eventbus"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/store"
	Logger "github.com/mwang-dev/friendfeed/utils/log"
	"github.com/pkg/errors"
)

// notificationMessageTemplate embeds the post title into the per-friend
// notification message.
const notificationMessageTemplate = `Your friend has a new post: "%s"`

// UnreadCounter is an optional cache of per-user unread counts, bumped
// best-effort after a successful fanout commit.
type UnreadCounter interface {
	Incr(ctx context.Context, userId string, delta int64) error
}

type Engine struct {
	Graph         store.FriendGraph
	Notifications store.NotificationStore
	Bus           *eventbus.Bus

	// Unread may be nil; fanout correctness never depends on it.
	Unread UnreadCounter
}

func NewEngine(graph store.FriendGraph, notifications store.NotificationStore, bus *eventbus.Bus) *Engine {
	return &Engine{Graph: graph, Notifications: notifications, Bus: bus}
}

// Run consumes post-created events until ctx is cancelled. A failed fanout
// is nacked so the transport redelivers it; the completion marker makes the
// redelivery a safe no-op once the batch has committed.
func (e *Engine) Run(ctx context.Context) error {
	messages, err := e.Bus.SubscribePostCreated(ctx)
	if err != nil {
		return err
	}

	for msg := range messages {
		event, err := eventbus.DecodePostCreated(msg)
		if err != nil {
			// Redelivering a malformed payload can never succeed.
			Logger.Log.Errorf("drop undecodable post-created message %s: %s", msg.UUID, err)
			msg.Ack()
			continue
		}

		if _, err := e.Fanout(ctx, event); err != nil {
			Logger.Log.Errorf("fanout failed for post %s, leaving to redelivery: %s", event.PostId, err)
			msg.Nack()
			continue
		}
		msg.Ack()
	}

	return nil
}

// Fanout snapshot-reads the author's friend list and commits one
// notification per friend together with a completion marker in a single
// atomic batch. Returns the number of friends notified by this event,
// which for a redelivered event is the originally recorded count.
func (e *Engine) Fanout(ctx context.Context, event *model.PostCreatedEvent) (int, error) {
	// Completion marker check before any work: redelivery must be a no-op.
	if marker, err := e.Notifications.FanoutMarker(ctx, event.PostId); err == nil {
		Logger.Log.Infof("fanout already completed for post %s, skipping", event.PostId)
		return marker.NotifiedCount, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return 0, err
	}

	friends, err := e.Graph.Friends(ctx, event.AuthorId)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Author record is gone; there is nobody to notify.
			Logger.Log.Warnf("user record not found for author %s, cannot notify friends", event.AuthorId)
			return 0, nil
		}
		// No mutation has happened yet; report failure and rely on the
		// transport's redelivery policy.
		return 0, err
	}

	now := time.Now()
	notifications := make([]*model.Notification, 0, len(friends))
	message := fmt.Sprintf(notificationMessageTemplate, event.Title)
	for _, friendId := range friends {
		notifications = append(notifications, &model.Notification{
			Id:          uuid.New().String(),
			RecipientId: friendId,
			PostId:      event.PostId,
			AuthorId:    event.AuthorId,
			Message:     message,
			Read:        false,
			CreatedAt:   now,
		})
	}

	marker := &model.FanoutMarker{
		PostId:        event.PostId,
		NotifiedCount: len(notifications),
		CreatedAt:     now,
	}
	if err := e.Notifications.CommitFanout(ctx, marker, notifications); err != nil {
		if errors.Is(err, store.ErrFanoutCommitted) {
			// Lost the race against a concurrent delivery of the same
			// event; the winner's batch is the canonical one.
			if committed, merr := e.Notifications.FanoutMarker(ctx, event.PostId); merr == nil {
				return committed.NotifiedCount, nil
			}
			return 0, nil
		}
		return 0, err
	}

	if e.Unread != nil {
		for _, n := range notifications {
			if err := e.Unread.Incr(ctx, n.RecipientId, 1); err != nil {
				Logger.Log.Warnf("fail to bump unread count for user %s: %s", n.RecipientId, err)
			}
		}
	}

	Logger.Log.Infof("notifications created for %d friends of user %s", len(notifications), event.AuthorId)
	return len(notifications), nil
}
