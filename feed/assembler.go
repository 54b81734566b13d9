// Package feed assembles a user's feed by fanning out one read per friend
// and fanning the results back into a single chronological sequence.
package feed

import (
	"context"
	"sort"
	"sync"

	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/store"
	Logger "github.com/mwang-dev/friendfeed/utils/log"
)

// Feed is the assembled result. FailedFriendIds lists friends whose post
// read failed; their posts are simply absent and the call still succeeds.
type Feed struct {
	Posts           []*model.Post `json:"posts"`
	FailedFriendIds []string      `json:"failedFriendIds"`
}

type Assembler struct {
	Graph store.FriendGraph
	Posts store.PostStore
}

func NewAssembler(graph store.FriendGraph, posts store.PostStore) *Assembler {
	return &Assembler{Graph: graph, Posts: posts}
}

type authorRead struct {
	authorId string
	posts    []*model.Post
	err      error
}

// GetFeed returns the union of the requester's own posts and the posts of
// every friend whose read succeeded, sorted by createdAt descending with
// ties broken by id ascending. Per-author reads run concurrently and join
// at a barrier before the merge.
func (a *Assembler) GetFeed(ctx context.Context, userId string) (*Feed, error) {
	friends, err := a.Graph.Friends(ctx, userId)
	if err != nil {
		return nil, err
	}

	// The requester's own posts are part of the feed. A self-referencing
	// friend list must not double-read the same author.
	authors := []string{userId}
	for _, friendId := range friends {
		if friendId != userId {
			authors = append(authors, friendId)
		}
	}

	var wg sync.WaitGroup
	ch := make(chan authorRead, len(authors))
	for _, authorId := range authors {
		wg.Add(1)
		go func(authorId string) {
			defer wg.Done()
			posts, err := a.Posts.PostsByAuthor(ctx, authorId)
			ch <- authorRead{authorId: authorId, posts: posts, err: err}
		}(authorId)
	}

	// wait for all goroutines to finish
	wg.Wait()
	close(ch)

	// A cancelled request's result would be discarded anyway.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	feed := &Feed{Posts: []*model.Post{}, FailedFriendIds: []string{}}
	for read := range ch {
		if read.err != nil {
			// One bad read degrades the feed, it never aborts it.
			Logger.Log.Errorf("fail to read posts of %s for feed of %s: %s", read.authorId, userId, read.err)
			feed.FailedFriendIds = append(feed.FailedFriendIds, read.authorId)
			continue
		}
		feed.Posts = append(feed.Posts, read.posts...)
	}

	sort.Slice(feed.Posts, func(i, j int) bool {
		if !feed.Posts[i].CreatedAt.Equal(feed.Posts[j].CreatedAt) {
			return feed.Posts[i].CreatedAt.After(feed.Posts[j].CreatedAt)
		}
		return feed.Posts[i].Id < feed.Posts[j].Id
	})
	sort.Strings(feed.FailedFriendIds)

	return feed, nil
}
