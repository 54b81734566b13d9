package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mwang-dev/friendfeed/auth"
	"github.com/mwang-dev/friendfeed/eventbus"
	"github.com/mwang-dev/friendfeed/feed"
	"github.com/mwang-dev/friendfeed/filestore"
	"github.com/mwang-dev/friendfeed/ingest"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/store"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router   *gin.Engine
	store    *store.MemoryStore
	provider *auth.FakeProvider
	files    *filestore.FakeFileStore
	bus      *eventbus.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.NewMemoryStore()
	provider := auth.NewFakeProvider()
	files := filestore.NewFakeFileStore()
	bus := eventbus.NewBus()
	t.Cleanup(func() { bus.Close() })

	api := &APIServer{
		Users:         s,
		Graph:         s,
		Posts:         s,
		Notifications: s,
		Images:        s,
		Ingest:        ingest.NewGateway(s, bus),
		Feed:          feed.NewAssembler(s, s),
		Auth:          provider,
		Files:         files,
	}

	router := gin.New()
	api.RegisterRoutes(router)

	return &testEnv{router: router, store: s, provider: provider, files: files, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// registerUser goes through the real endpoint and returns the new uid.
func registerUser(t *testing.T, e *testEnv, email, name string, friends interface{}) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/register", "", map[string]interface{}{
		"email":    email,
		"password": "hunter22",
		"name":     name,
		"friends":  friends,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	result := decodeBody(t, w)["result"].(string)
	return strings.TrimPrefix(result, "User registered successfully with UID: ")
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/register", "", map[string]interface{}{
		"email": "a@x.com", "name": "Alice",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	uid := registerUser(t, e, "a@x.com", "Alice", []string{"friend-1", "friend-1", "friend-2"})
	require.NotEmpty(t, uid)

	user, err := e.store.UserById(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, "Alice", user.DisplayName)
	require.Equal(t, []string{"friend-1", "friend-2"}, user.FriendIds())

	// Duplicate email conflicts and must not create a second account.
	w = e.do(t, http.MethodPost, "/register", "", map[string]interface{}{
		"email": "a@x.com", "password": "pw2", "name": "Alice2",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	users, err := e.store.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestRegisterAcceptsCommaSeparatedFriends(t *testing.T) {
	e := newTestEnv(t)
	uid := registerUser(t, e, "b@x.com", "Bob", "friend-1, friend-2")

	user, err := e.store.UserById(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, []string{"friend-1", "friend-2"}, user.FriendIds())
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/login", "bogus", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	uid := registerUser(t, e, "a@x.com", "Alice", []string{"friend-1"})
	w = e.do(t, http.MethodGet, "/login", e.provider.TokenFor(uid), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, uid, body["uid"])
	require.Equal(t, "a@x.com", body["email"])
	require.Equal(t, "Alice", body["displayName"])
	require.Equal(t, []interface{}{"friend-1"}, body["friends"])
}

func TestAddPost(t *testing.T) {
	e := newTestEnv(t)
	uid := registerUser(t, e, "a@x.com", "Alice", []string{})
	token := e.provider.TokenFor(uid)

	w := e.do(t, http.MethodPost, "/addPost", "", map[string]string{"title": "t", "content": "c"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/addPost", token, map[string]string{"title": "  ", "content": "c"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/addPost", token, map[string]string{"title": "Hello", "content": "World"})
	require.Equal(t, http.StatusCreated, w.Code)
	result := decodeBody(t, w)["result"].(string)
	postId := strings.TrimPrefix(result, "Post added successfully with ID: ")
	require.NotEmpty(t, postId)

	posts, err := e.store.PostsByAuthor(context.Background(), uid)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, postId, posts[0].Id)
}

func TestUploadImage(t *testing.T) {
	e := newTestEnv(t)
	uid := registerUser(t, e, "a@x.com", "Alice", []string{})
	token := e.provider.TokenFor(uid)

	w := e.do(t, http.MethodPost, "/uploadImage", token, map[string]string{"filename": "a.png"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	payload := map[string]string{
		"imageData": base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		"filename":  "a.txt",
		"mimeType":  "text/plain",
	}
	w = e.do(t, http.MethodPost, "/uploadImage", token, payload)
	require.Equal(t, http.StatusBadRequest, w.Code)

	payload["mimeType"] = "image/png"
	payload["filename"] = "a.png"
	w = e.do(t, http.MethodPost, "/uploadImage", token, payload)
	require.Equal(t, http.StatusOK, w.Code)
	url := decodeBody(t, w)["url"].(string)
	require.Contains(t, url, "fake.storage.local")
	require.True(t, strings.HasSuffix(url, ".png"))
}

func TestGetPostsAndUsers(t *testing.T) {
	e := newTestEnv(t)
	uid := registerUser(t, e, "a@x.com", "Alice", []string{"friend-1"})

	require.NoError(t, e.store.CreatePost(context.Background(), &model.Post{
		Id: "p1", AuthorId: uid, Title: "t", Content: "c", CreatedAt: time.Now(),
	}))

	w := e.do(t, http.MethodGet, fmt.Sprintf("/getPosts?userId=%s", uid), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := decodeBody(t, w)["posts"].([]interface{})
	require.Len(t, posts, 1)

	w = e.do(t, http.MethodGet, "/getPosts?userId=nobody", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["posts"], 0)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/getFriends?userId=%s", uid), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []interface{}{"friend-1"}, decodeBody(t, w)["friends"])

	w = e.do(t, http.MethodGet, "/getUsers", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["users"], 1)
}

func TestGetFeedEndpoint(t *testing.T) {
	e := newTestEnv(t)
	alice := registerUser(t, e, "a@x.com", "Alice", []string{})
	bob := registerUser(t, e, "b@x.com", "Bob", []string{alice})

	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, e.store.CreatePost(context.Background(), &model.Post{
		Id: "p1", AuthorId: alice, Title: "t1", Content: "c1", CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, e.store.CreatePost(context.Background(), &model.Post{
		Id: "p2", AuthorId: bob, Title: "t2", Content: "c2", CreatedAt: base.Add(2 * time.Minute),
	}))

	w := e.do(t, http.MethodGet, "/getFeed", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Bob follows alice, so his feed is his post plus hers, newest first.
	w = e.do(t, http.MethodGet, "/getFeed", e.provider.TokenFor(bob), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	posts := body["posts"].([]interface{})
	require.Len(t, posts, 2)
	first := posts[0].(map[string]interface{})
	require.Equal(t, "p2", first["id"])
	require.Len(t, body["failedFriendIds"], 0)

	// Alice doesn't list bob, so her feed stays her own.
	w = e.do(t, http.MethodGet, "/getFeed", e.provider.TokenFor(alice), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["posts"], 1)
}

func TestNotificationsReadModel(t *testing.T) {
	e := newTestEnv(t)
	uid := registerUser(t, e, "a@x.com", "Alice", []string{})
	token := e.provider.TokenFor(uid)

	now := time.Now()
	require.NoError(t, e.store.CommitFanout(context.Background(),
		&model.FanoutMarker{PostId: "p1", NotifiedCount: 2, CreatedAt: now},
		[]*model.Notification{
			{Id: "n1", RecipientId: uid, PostId: "p1", AuthorId: "bob", Message: "m", CreatedAt: now},
			{Id: "n2", RecipientId: uid, PostId: "p1", AuthorId: "bob", Message: "m", CreatedAt: now},
		}))

	w := e.do(t, http.MethodGet, "/getNotifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Len(t, body["notifications"], 2)
	require.Equal(t, float64(2), body["unreadCount"])

	w = e.do(t, http.MethodPost, "/markNotificationsRead", token, map[string]interface{}{
		"ids": []string{"n1", "n2"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(2), decodeBody(t, w)["result"])

	w = e.do(t, http.MethodGet, "/getNotifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(0), decodeBody(t, w)["unreadCount"])
}
