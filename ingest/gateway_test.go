package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/mwang-dev/friendfeed/eventbus"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSubmitPostValidation(t *testing.T) {
	s := store.NewMemoryStore()
	bus := eventbus.NewBus()
	defer bus.Close()
	gateway := NewGateway(s, bus)

	_, err := gateway.SubmitPost(context.Background(), "", "title", "content", "")
	require.True(t, errors.Is(err, model.ErrUnauthenticated))

	_, err = gateway.SubmitPost(context.Background(), "alice", "   ", "content", "")
	require.True(t, errors.Is(err, model.ErrInvalidArgument))

	_, err = gateway.SubmitPost(context.Background(), "alice", "title", "\t\n", "")
	require.True(t, errors.Is(err, model.ErrInvalidArgument))

	posts, err := s.PostsByAuthor(context.Background(), "alice")
	require.NoError(t, err)
	require.Empty(t, posts)
}

func TestSubmitPostPersistsThenPublishes(t *testing.T) {
	s := store.NewMemoryStore()
	bus := eventbus.NewBus()
	defer bus.Close()
	gateway := NewGateway(s, bus)

	ctx := context.Background()
	messages, err := bus.SubscribePostCreated(ctx)
	require.NoError(t, err)

	// Go channel receive and send cannot be in the same routine, otherwise
	// it will cause deadlock. Thus we need to asynchronously get back the
	// message.
	var receivedMsg *message.Message
	done := make(chan int)
	go func() {
		for msg := range messages {
			receivedMsg = msg
			msg.Ack()
			done <- 1
			break
		}
	}()

	post, err := gateway.SubmitPost(ctx, "alice", "  Hello  ", "world", "https://img.example.com/a.png")
	require.NoError(t, err)
	require.NotEmpty(t, post.Id)
	require.Equal(t, "alice", post.AuthorId)
	require.Equal(t, "Hello", post.Title, "title must be trimmed")
	require.Equal(t, "world", post.Content)
	require.False(t, post.CreatedAt.IsZero())

	// The post must be durable before the event is observable.
	stored, err := s.PostsByAuthor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, post.Id, stored[0].Id)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("post-created event was never published")
	}

	event, err := eventbus.DecodePostCreated(receivedMsg)
	require.NoError(t, err)
	require.Equal(t, post.Id, event.PostId)
	require.Equal(t, "alice", event.AuthorId)
	require.Equal(t, "Hello", event.Title)
}

func TestSubmitPostTimestampsNonDecreasing(t *testing.T) {
	s := store.NewMemoryStore()
	bus := eventbus.NewBus()
	defer bus.Close()
	gateway := NewGateway(s, bus)

	ctx := context.Background()
	var last time.Time
	for i := 0; i < 5; i++ {
		post, err := gateway.SubmitPost(ctx, "alice", "t", "c", "")
		require.NoError(t, err)
		require.False(t, post.CreatedAt.Before(last))
		last = post.CreatedAt
	}
}
