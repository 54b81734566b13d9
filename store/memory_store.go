package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mwang-dev/friendfeed/model"
	"github.com/pkg/errors"
)

// MemoryStore is a thread safe in-process implementation of every adapter
// interface. It backs unit tests and local development without postgres.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	posts         map[string]*model.Post
	notifications map[string]*model.Notification
	markers       map[string]*model.FanoutMarker
	images        map[string]*model.Image
}

var (
	_ FriendGraph       = (*MemoryStore)(nil)
	_ UserStore         = (*MemoryStore)(nil)
	_ PostStore         = (*MemoryStore)(nil)
	_ NotificationStore = (*MemoryStore)(nil)
	_ ImageStore        = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		posts:         make(map[string]*model.Post),
		notifications: make(map[string]*model.Notification),
		markers:       make(map[string]*model.FanoutMarker),
		images:        make(map[string]*model.Image),
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return errors.Wrapf(model.ErrConflict, "user with email %s already exists", user.Email)
		}
	}
	cp := *user
	m.users[user.Id] = &cp
	return nil
}

func (m *MemoryStore) UserById(ctx context.Context, userId string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[userId]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "user %s", userId)
	}
	cp := *user
	return &cp, nil
}

func (m *MemoryStore) Users(ctx context.Context) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := []*model.User{}
	for _, user := range m.users {
		cp := *user
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Id < users[j].Id
	})
	return users, nil
}

func (m *MemoryStore) Friends(ctx context.Context, userId string) ([]string, error) {
	user, err := m.UserById(ctx, userId)
	if err != nil {
		return nil, err
	}
	return user.FriendIds(), nil
}

func (m *MemoryStore) CreatePost(ctx context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *post
	m.posts[post.Id] = &cp
	return nil
}

func (m *MemoryStore) PostsByAuthor(ctx context.Context, authorId string) ([]*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	posts := []*model.Post{}
	for _, post := range m.posts {
		if post.AuthorId == authorId {
			cp := *post
			posts = append(posts, &cp)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].Id < posts[j].Id
	})
	return posts, nil
}

func (m *MemoryStore) DeletePostsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, post := range m.posts {
		if post.CreatedAt.Before(cutoff) {
			delete(m.posts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) CommitFanout(ctx context.Context, marker *model.FanoutMarker, notifications []*model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[marker.PostId]; ok {
		return ErrFanoutCommitted
	}
	mcp := *marker
	m.markers[marker.PostId] = &mcp
	for _, n := range notifications {
		cp := *n
		m.notifications[n.Id] = &cp
	}
	return nil
}

func (m *MemoryStore) FanoutMarker(ctx context.Context, postId string) (*model.FanoutMarker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	marker, ok := m.markers[postId]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "fanout marker for post %s", postId)
	}
	cp := *marker
	return &cp, nil
}

func (m *MemoryStore) NotificationsByRecipient(ctx context.Context, recipientId string) ([]*model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	notifications := []*model.Notification{}
	for _, n := range m.notifications {
		if n.RecipientId == recipientId {
			cp := *n
			notifications = append(notifications, &cp)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		if !notifications[i].CreatedAt.Equal(notifications[j].CreatedAt) {
			return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
		}
		return notifications[i].Id < notifications[j].Id
	})
	return notifications, nil
}

func (m *MemoryStore) CountUnread(ctx context.Context, recipientId string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, n := range m.notifications {
		if n.RecipientId == recipientId && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) MarkRead(ctx context.Context, recipientId string, notificationIds []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, id := range notificationIds {
		n, ok := m.notifications[id]
		if ok && n.RecipientId == recipientId && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

func (m *MemoryStore) CreateImage(ctx context.Context, image *model.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *image
	m.images[image.Id] = &cp
	return nil
}
