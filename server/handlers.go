// Package server exposes the REST surface of the service. Handlers are thin
// adapters: they parse and validate the wire shapes, then delegate to the
// core components.
package server

import (
	"encoding/base64"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mwang-dev/friendfeed/auth"
	"github.com/mwang-dev/friendfeed/feed"
	"github.com/mwang-dev/friendfeed/filestore"
	"github.com/mwang-dev/friendfeed/ingest"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/mwang-dev/friendfeed/server/middlewares"
	"github.com/mwang-dev/friendfeed/store"
	"github.com/mwang-dev/friendfeed/utils"
	Logger "github.com/mwang-dev/friendfeed/utils/log"
	"github.com/pkg/errors"
)

type APIServer struct {
	Users         store.UserStore
	Graph         store.FriendGraph
	Posts         store.PostStore
	Notifications store.NotificationStore
	Images        store.ImageStore

	Ingest *ingest.Gateway
	Feed   *feed.Assembler
	Auth   auth.Provider
	Files  filestore.ImageFileStore

	// Unread may be nil when redis isn't configured; the handlers fall
	// back to counting in the notification store.
	Unread *utils.UnreadCountStore
}

// RegisterRoutes binds every endpoint onto the router.
func (s *APIServer) RegisterRoutes(router *gin.Engine) {
	authRequired := middlewares.BearerAuth(s.Auth)

	router.POST("/register", s.Register)
	router.GET("/login", authRequired, s.Login)
	router.POST("/addPost", authRequired, s.AddPost)
	router.POST("/uploadImage", authRequired, s.UploadImage)
	router.GET("/getPosts", s.GetPosts)
	router.GET("/getFriends", s.GetFriends)
	router.GET("/getUsers", s.GetUsers)
	router.GET("/getFeed", authRequired, s.GetFeed)
	router.GET("/getNotifications", authRequired, s.GetNotifications)
	router.POST("/markNotificationsRead", authRequired, s.MarkNotificationsRead)
}

type registerRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Name     string      `json:"name"`
	Friends  interface{} `json:"friends"`
}

// normalizeFriends accepts either an array of ids or a comma separated
// string, the two shapes clients have historically sent.
func normalizeFriends(raw interface{}) []string {
	switch v := raw.(type) {
	case []interface{}:
		friends := []string{}
		for _, item := range v {
			if s, ok := item.(string); ok {
				friends = append(friends, s)
			}
		}
		return utils.DedupStrings(friends)
	case string:
		return utils.DedupStrings(strings.Split(v, ","))
	default:
		return []string{}
	}
}

func (s *APIServer) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email, password, or name in request body"})
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email, password, or name in request body"})
		return
	}

	uid, err := s.Auth.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Registration failed: This email is already registered."})
			return
		}
		Logger.Log.Errorf("fail to register identity for %s: %s", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	user := &model.User{
		Id:          uid,
		Email:       req.Email,
		DisplayName: req.Name,
		CreatedAt:   time.Now(),
	}
	if err := user.SetFriendIds(normalizeFriends(req.Friends)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid friends list"})
		return
	}
	if err := s.Users.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, model.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Registration failed: This email is already registered."})
			return
		}
		Logger.Log.Errorf("fail to store user profile for %s: %s", uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}

	Logger.Log.Infof("user registered successfully, uid: %s, email: %s", uid, req.Email)
	c.JSON(http.StatusCreated, gin.H{"result": "User registered successfully with UID: " + uid})
}

func (s *APIServer) Login(c *gin.Context) {
	identity := middlewares.IdentityFrom(c)

	friends := []string{}
	displayName := identity.DisplayName
	user, err := s.Users.UserById(c.Request.Context(), identity.Uid)
	if err == nil {
		friends = user.FriendIds()
		displayName = user.DisplayName
	} else if !errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error during user data retrieval."})
		return
	} else {
		Logger.Log.Warnf("user profile not found for uid: %s", identity.Uid)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Authenticated successfully",
		"uid":         identity.Uid,
		"email":       identity.Email,
		"displayName": displayName,
		"friends":     friends,
	})
}

type addPostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageUrl string `json:"imageUrl"`
}

func (s *APIServer) AddPost(c *gin.Context) {
	identity := middlewares.IdentityFrom(c)

	var req addPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing title or content for the post."})
		return
	}

	post, err := s.Ingest.SubmitPost(c.Request.Context(), identity.Uid, req.Title, req.Content, req.ImageUrl)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidArgument):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing title or content for the post."})
		case errors.Is(err, model.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Invalid token or other error."})
		default:
			Logger.Log.Errorf("fail to add post for user %s: %s", identity.Uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add post"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"result": "Post added successfully with ID: " + post.Id})
}

type uploadImageRequest struct {
	ImageData string `json:"imageData"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
}

func (s *APIServer) UploadImage(c *gin.Context) {
	var req uploadImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing imageData, filename, or mimeType"})
		return
	}
	if req.ImageData == "" || req.Filename == "" || req.MimeType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing imageData, filename, or mimeType"})
		return
	}
	if !strings.HasPrefix(req.MimeType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This is not an image: " + req.Filename})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageData is not valid base64"})
		return
	}

	key := uuid.New().String() + path.Ext(req.Filename)
	url, err := s.Files.Store(key, data, req.MimeType)
	if err != nil {
		Logger.Log.Errorf("fail to store image %s: %s", req.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	// Metadata is best effort: the binary is durable and the url is valid
	// even if this record write fails.
	if err := s.Images.CreateImage(c.Request.Context(), &model.Image{
		Id:          uuid.New().String(),
		FilePath:    key,
		PublicUrl:   url,
		ContentType: req.MimeType,
		Size:        int64(len(data)),
		UploadDate:  time.Now(),
	}); err != nil {
		Logger.Log.Errorf("fail to store image metadata for %s: %s", key, err)
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *APIServer) GetPosts(c *gin.Context) {
	userId := c.Query("userId")
	if userId == "" {
		c.JSON(http.StatusOK, gin.H{"posts": []*model.Post{}})
		return
	}

	posts, err := s.Posts.PostsByAuthor(c.Request.Context(), userId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *APIServer) GetFriends(c *gin.Context) {
	userId := c.Query("userId")
	friends := []string{}
	if userId != "" {
		list, err := s.Graph.Friends(c.Request.Context(), userId)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch friends"})
			return
		}
		if err == nil {
			friends = list
		}
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

func (s *APIServer) GetUsers(c *gin.Context) {
	users, err := s.Users.Users(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *APIServer) GetFeed(c *gin.Context) {
	identity := middlewares.IdentityFrom(c)

	result, err := s.Feed.GetFeed(c.Request.Context(), identity.Uid)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		Logger.Log.Errorf("fail to assemble feed for user %s: %s", identity.Uid, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assemble feed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":           result.Posts,
		"failedFriendIds": result.FailedFriendIds,
	})
}

func (s *APIServer) GetNotifications(c *gin.Context) {
	identity := middlewares.IdentityFrom(c)
	ctx := c.Request.Context()

	notifications, err := s.Notifications.NotificationsByRecipient(ctx, identity.Uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	unread, err := s.unreadCount(c, identity.Uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unreadCount":   unread,
	})
}

// unreadCount serves from the redis cache when possible, recomputing and
// backfilling the cache on a miss.
func (s *APIServer) unreadCount(c *gin.Context, userId string) (int64, error) {
	ctx := c.Request.Context()

	if s.Unread != nil {
		if count, ok, err := s.Unread.Get(ctx, userId); err == nil && ok {
			return count, nil
		} else if err != nil {
			Logger.Log.Warnf("unread cache read failed for user %s: %s", userId, err)
		}
	}

	count, err := s.Notifications.CountUnread(ctx, userId)
	if err != nil {
		return 0, err
	}
	if s.Unread != nil {
		if err := s.Unread.Set(ctx, userId, count); err != nil {
			Logger.Log.Warnf("unread cache backfill failed for user %s: %s", userId, err)
		}
	}
	return count, nil
}

type markReadRequest struct {
	Ids []string `json:"ids"`
}

func (s *APIServer) MarkNotificationsRead(c *gin.Context) {
	identity := middlewares.IdentityFrom(c)
	ctx := c.Request.Context()

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing notification ids"})
		return
	}

	updated, err := s.Notifications.MarkRead(ctx, identity.Uid, req.Ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}

	if s.Unread != nil && updated > 0 {
		if err := s.Unread.Invalidate(ctx, identity.Uid); err != nil {
			Logger.Log.Warnf("unread cache invalidation failed for user %s: %s", identity.Uid, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"result": updated})
}
