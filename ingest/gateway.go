// Package ingest implements the post ingest gateway: validate, persist,
// then emit a PostCreated event once the write is durable.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mwang-dev/friendfeed/eventbus"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/store"
	Logger "github.com/mwang-dev/friendfeed/utils/log"
	"github.com/pkg/errors"
)

type Gateway struct {
	Posts store.PostStore
	Bus   *eventbus.Bus
}

func NewGateway(posts store.PostStore, bus *eventbus.Bus) *Gateway {
	return &Gateway{Posts: posts, Bus: bus}
}

// SubmitPost appends one immutable post with a fresh id and a server
// assigned timestamp and returns it to the caller synchronously. Fanout to
// the author's friends happens out-of-band and is not awaited here.
func (g *Gateway) SubmitPost(ctx context.Context, authorId, title, content, imageUrl string) (*model.Post, error) {
	if authorId == "" {
		return nil, errors.Wrap(model.ErrUnauthenticated, "submit post without caller identity")
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "missing title or content for the post")
	}

	post := &model.Post{
		Id:        uuid.New().String(),
		AuthorId:  authorId,
		Title:     title,
		Content:   content,
		ImageUrl:  imageUrl,
		CreatedAt: time.Now(),
	}
	if err := g.Posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	// Publish strictly after the write: the record must be visible to
	// readers before any notification can reference it. A publish failure
	// doesn't fail the request since the post itself is durable; it only
	// delays notifications until the transport recovers.
	if err := g.Bus.PublishPostCreated(&model.PostCreatedEvent{
		PostId:   post.Id,
		AuthorId: post.AuthorId,
		Title:    post.Title,
	}); err != nil {
		Logger.Log.Errorf("fail to publish post-created event for post %s: %s", post.Id, err)
	}

	return post, nil
}
