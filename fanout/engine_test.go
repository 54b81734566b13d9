package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/mwang-dev/friendfeed/eventbus"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func createUserWithFriends(t *testing.T, s *store.MemoryStore, id string, friends []string) {
	t.Helper()
	user := &model.User{
		Id:          id,
		Email:       id + "@example.com",
		DisplayName: id,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, user.SetFriendIds(friends))
	require.NoError(t, s.CreateUser(context.Background(), user))
}

func TestFanoutNotifiesEveryFriend(t *testing.T) {
	s := store.NewMemoryStore()
	createUserWithFriends(t, s, "alice", []string{"bob", "carol"})
	engine := NewEngine(s, s, nil)

	event := &model.PostCreatedEvent{PostId: "post-1", AuthorId: "alice", Title: "Hello"}
	count, err := engine.Fanout(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	seen := map[string]bool{}
	for _, recipient := range []string{"bob", "carol"} {
		notifications, err := s.NotificationsByRecipient(context.Background(), recipient)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		require.Equal(t, "post-1", notifications[0].PostId)
		require.Equal(t, "alice", notifications[0].AuthorId)
		require.Contains(t, notifications[0].Message, "Hello")
		require.False(t, notifications[0].Read)
		seen[notifications[0].Id] = true
	}
	require.Len(t, seen, 2, "notification ids must be distinct")
}

func TestFanoutNoFriendsIsNoop(t *testing.T) {
	s := store.NewMemoryStore()
	createUserWithFriends(t, s, "dave", []string{})
	engine := NewEngine(s, s, nil)

	event := &model.PostCreatedEvent{PostId: "post-solo", AuthorId: "dave", Title: "Solo"}
	count, err := engine.Fanout(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// Completion still leaves a marker so redelivery stays a no-op.
	marker, err := s.FanoutMarker(context.Background(), "post-solo")
	require.NoError(t, err)
	require.Equal(t, 0, marker.NotifiedCount)
}

func TestFanoutIdempotentUnderRedelivery(t *testing.T) {
	s := store.NewMemoryStore()
	createUserWithFriends(t, s, "alice", []string{"bob", "carol"})
	engine := NewEngine(s, s, nil)

	event := &model.PostCreatedEvent{PostId: "post-1", AuthorId: "alice", Title: "Hello"}
	first, err := engine.Fanout(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, 2, first)

	// Redelivery of the same event must not create a second notification
	// set and must report the originally recorded count.
	second, err := engine.Fanout(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, first, second)

	for _, recipient := range []string{"bob", "carol"} {
		notifications, err := s.NotificationsByRecipient(context.Background(), recipient)
		require.NoError(t, err)
		require.Len(t, notifications, 1)
	}
}

func TestFanoutUnknownAuthorNotifiesNobody(t *testing.T) {
	s := store.NewMemoryStore()
	engine := NewEngine(s, s, nil)

	count, err := engine.Fanout(context.Background(), &model.PostCreatedEvent{
		PostId: "post-ghost", AuthorId: "nobody", Title: "Boo",
	})
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

type failingGraph struct{}

func (failingGraph) Friends(ctx context.Context, userId string) ([]string, error) {
	return nil, errors.Wrap(model.ErrUnavailable, "store down")
}

func TestFanoutFriendReadFailureMutatesNothing(t *testing.T) {
	s := store.NewMemoryStore()
	engine := NewEngine(failingGraph{}, s, nil)

	event := &model.PostCreatedEvent{PostId: "post-1", AuthorId: "alice", Title: "Hello"}
	_, err := engine.Fanout(context.Background(), event)
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrUnavailable))

	// No partial mutation before the failure: no marker, no notifications.
	_, err = s.FanoutMarker(context.Background(), "post-1")
	require.True(t, errors.Is(err, model.ErrNotFound))
}

func TestEngineRunConsumesPublishedEvents(t *testing.T) {
	s := store.NewMemoryStore()
	createUserWithFriends(t, s, "alice", []string{"bob"})

	bus := eventbus.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := NewEngine(s, s, bus)
	go func() {
		_ = engine.Run(ctx)
	}()

	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bus.PublishPostCreated(&model.PostCreatedEvent{
		PostId: "post-1", AuthorId: "alice", Title: "Hello",
	}))

	require.Eventually(t, func() bool {
		notifications, err := s.NotificationsByRecipient(context.Background(), "bob")
		return err == nil && len(notifications) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
