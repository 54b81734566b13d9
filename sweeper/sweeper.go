// Package sweeper implements the retention sweep: periodic bulk deletion of
// posts older than a configured age.
package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mwang-dev/friendfeed/store"
	Logger "github.com/mwang-dev/friendfeed/utils/log"
	"github.com/pkg/errors"
)

const (
	// Defaults mirror the production schedule: fire every 5 minutes,
	// delete posts older than 10 minutes.
	DefaultPeriod = 5 * time.Minute
	DefaultMaxAge = 10 * time.Minute
)

// ErrSweepInFlight is returned when a sweep is requested while a previous
// one has not finished. The new trigger is skipped, not queued.
var ErrSweepInFlight = errors.New("a sweep is already in flight")

type Sweeper struct {
	Posts  store.PostStore
	Period time.Duration
	MaxAge time.Duration

	inFlight int32
}

func NewSweeper(posts store.PostStore, period, maxAge time.Duration) *Sweeper {
	if period <= 0 {
		period = DefaultPeriod
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Sweeper{Posts: posts, Period: period, MaxAge: maxAge}
}

// Sweep deletes every post whose created_at is older than now-maxAge and
// returns the number deleted. The predicate uses created_at, the same
// column written at post creation; a sweep against any other field would
// silently match nothing. Idempotent: re-running with the same or a later
// now and no intervening inserts deletes zero additional posts.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	return s.Posts.DeletePostsBefore(ctx, now.Add(-maxAge))
}

// RunOnce performs one guarded sweep. Only a single logical sweep runs at a
// time; a trigger arriving while one is in flight gets ErrSweepInFlight.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	if !atomic.CompareAndSwapInt32(&s.inFlight, 0, 1) {
		return 0, ErrSweepInFlight
	}
	defer atomic.StoreInt32(&s.inFlight, 0)

	return s.Sweep(ctx, time.Now(), s.MaxAge)
}

// Run fires a sweep on a fixed period until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go func() {
				deleted, err := s.RunOnce(ctx)
				if errors.Is(err, ErrSweepInFlight) {
					Logger.Log.Warn("previous sweep still running, skipping this trigger")
					return
				}
				if err != nil {
					Logger.Log.Errorf("retention sweep failed: %s", err)
					return
				}
				Logger.Log.Infof("deleted %d old posts", deleted)
			}()
		}
	}
}
