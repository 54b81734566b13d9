package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func createPostAt(t *testing.T, s *store.MemoryStore, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.CreatePost(context.Background(), &model.Post{
		Id:        id,
		AuthorId:  "alice",
		Title:     "title",
		Content:   "content",
		CreatedAt: createdAt,
	}))
}

func TestSweepDeletesOnlyExpiredPosts(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now()
	createPostAt(t, s, "old", now.Add(-120*time.Second))
	createPostAt(t, s, "fresh", now.Add(-10*time.Second))

	sw := NewSweeper(s, 0, 0)
	deleted, err := sw.Sweep(context.Background(), now, 60*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	posts, err := s.PostsByAuthor(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "fresh", posts[0].Id)
}

func TestSweepIsIdempotent(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now()
	createPostAt(t, s, "old", now.Add(-120*time.Second))

	sw := NewSweeper(s, 0, 0)
	deleted, err := sw.Sweep(context.Background(), now, 60*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	// Immediate re-run with no intervening inserts deletes nothing.
	deleted, err = sw.Sweep(context.Background(), now, 60*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)
}

// blockingPostStore parks DeletePostsBefore until released, emulating a
// sweep that outlives its scheduling period.
type blockingPostStore struct {
	store.PostStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPostStore) DeletePostsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return 0, nil
}

func TestOverlappingSweepIsSkipped(t *testing.T) {
	blocking := &blockingPostStore{
		PostStore: store.NewMemoryStore(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	sw := NewSweeper(blocking, 0, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := sw.RunOnce(context.Background())
		require.NoError(t, err)
	}()

	// Trigger again while the first run is parked inside the store.
	<-blocking.entered
	_, err := sw.RunOnce(context.Background())
	require.True(t, errors.Is(err, ErrSweepInFlight))

	close(blocking.release)
	<-done

	// Guard is released once the in-flight run finishes.
	_, err = sw.RunOnce(context.Background())
	require.NoError(t, err)
}
