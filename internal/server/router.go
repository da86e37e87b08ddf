package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/storyloomhq/storyloom/backend/internal/auth"
	"github.com/storyloomhq/storyloom/backend/internal/catalog"
	"github.com/storyloomhq/storyloom/backend/internal/mentions"
	"github.com/storyloomhq/storyloom/backend/internal/notifications"
	"github.com/storyloomhq/storyloom/backend/internal/presence"
	"github.com/storyloomhq/storyloom/backend/internal/threads"
	"go.uber.org/zap"
)

const (
	userIDContextKey = "storyloom_user_id"
	roleContextKey   = "storyloom_user_role"
)

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingThreads       = errors.New("thread service dependency required")
	errMissingNotifications = errors.New("notification store dependency required")
	errMissingMentions      = errors.New("mention resolver dependency required")
	errMissingHub           = errors.New("presence hub dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenValidator validates bearer tokens for both REST calls and the live
// channel handshake.
type TokenValidator interface {
	ValidateToken(token string) (auth.Claims, error)
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	TokenManager  TokenValidator
	Threads       *threads.Service
	Notifications *notifications.Store
	Mentions      *mentions.Resolver
	Catalog       *catalog.Service
	Hub           *presence.Hub
	Logger        *zap.Logger
}

// NewHTTPHandler assembles the router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Threads == nil {
		return nil, errMissingThreads
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifications
	}
	if deps.Mentions == nil {
		return nil, errMissingMentions
	}
	if deps.Hub == nil {
		return nil, errMissingHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.TokenManager,
		threads:       deps.Threads,
		notifications: deps.Notifications,
		mentions:      deps.Mentions,
		catalog:       deps.Catalog,
		hub:           deps.Hub,
		logger:        logger,
	}

	router.GET("/comments/story/:storyId", handler.handleListStoryComments)
	router.GET("/comments/story/:storyId/chapter/:chapterId", handler.handleListChapterComments)
	router.GET("/comments/suggestions", handler.handleMentionSuggestions)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/comments", handler.handleCreateComment)
	protected.POST("/comments/:commentId/like", handler.handleToggleLike)
	protected.DELETE("/comments/:commentId", handler.handleDeleteComment)
	protected.POST("/comments/:commentId/replies", handler.handleAddReply)
	protected.POST("/comments/:commentId/replies/:replyId/like", handler.handleToggleReplyLike)
	protected.DELETE("/comments/:commentId/replies/:replyId", handler.handleDeleteReply)

	protected.GET("/notifications", handler.handleListNotifications)
	protected.GET("/notifications/unread-count", handler.handleUnreadCount)
	protected.PUT("/notifications/mark-all-read", handler.handleMarkAllRead)
	protected.PUT("/notifications/:notificationId/read", handler.handleMarkRead)
	protected.DELETE("/notifications/delete-read", handler.handleDeleteRead)
	protected.DELETE("/notifications/:notificationId", handler.handleDeleteNotification)

	if deps.Catalog != nil {
		protected.POST("/stories/:storyId/favorite", handler.handleAddFavorite)
		protected.DELETE("/stories/:storyId/favorite", handler.handleRemoveFavorite)
		protected.POST("/stories/:storyId/chapters/:chapterId/read", handler.handleRecordRead)
		protected.GET("/reading-history", handler.handleReadingHistory)
	}

	// The live channel authenticates its own handshake; the token travels as
	// a query parameter because EventSource cannot set headers.
	router.GET("/notifications/stream", handler.handleNotificationStream)

	return router, nil
}

type httpHandler struct {
	tokens        TokenValidator
	threads       *threads.Service
	notifications *notifications.Store
	mentions      *mentions.Resolver
	catalog       *catalog.Service
	hub           *presence.Hub
	logger        *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, claims.UserID)
	c.Set(roleContextKey, claims.Role)
	c.Next()
}

type createCommentPayload struct {
	StoryID   string `json:"storyId"`
	ChapterID string `json:"chapterId"`
	Content   string `json:"content"`
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	var request createCommentPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.StoryID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	comment, err := h.threads.CreateComment(c.Request.Context(),
		c.GetString(userIDContextKey), request.StoryID, request.ChapterID, request.Content)
	if err != nil {
		h.respondThreadError(c, "create comment failed", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleListStoryComments(c *gin.Context) {
	comments, err := h.threads.ListByStory(c.Request.Context(), c.Param("storyId"))
	if err != nil {
		h.respondThreadError(c, "list story comments failed", err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *httpHandler) handleListChapterComments(c *gin.Context) {
	comments, err := h.threads.ListByChapter(c.Request.Context(), c.Param("storyId"), c.Param("chapterId"))
	if err != nil {
		h.respondThreadError(c, "list chapter comments failed", err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	likes, hasLiked, err := h.threads.ToggleLike(c.Request.Context(),
		c.Param("commentId"), c.GetString(userIDContextKey))
	if err != nil {
		h.respondThreadError(c, "toggle like failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes, "hasLiked": hasLiked})
}

type addReplyPayload struct {
	Content  string            `json:"content"`
	Mentions []threads.Mention `json:"mentions"`
}

func (h *httpHandler) handleAddReply(c *gin.Context) {
	var request addReplyPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	comment, err := h.threads.AddReply(c.Request.Context(),
		c.Param("commentId"), c.GetString(userIDContextKey), request.Content, request.Mentions)
	if err != nil {
		h.respondThreadError(c, "add reply failed", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleToggleReplyLike(c *gin.Context) {
	likes, hasLiked, err := h.threads.ToggleLikeReply(c.Request.Context(),
		c.Param("commentId"), c.Param("replyId"), c.GetString(userIDContextKey))
	if err != nil {
		h.respondThreadError(c, "toggle reply like failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes, "hasLiked": hasLiked})
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	err := h.threads.DeleteComment(c.Request.Context(), c.Param("commentId"),
		c.GetString(userIDContextKey), c.GetString(roleContextKey))
	if err != nil {
		h.respondThreadError(c, "delete comment failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleDeleteReply(c *gin.Context) {
	err := h.threads.DeleteReply(c.Request.Context(), c.Param("commentId"), c.Param("replyId"),
		c.GetString(userIDContextKey), c.GetString(roleContextKey))
	if err != nil {
		h.respondThreadError(c, "delete reply failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleMentionSuggestions(c *gin.Context) {
	suggestions, err := h.mentions.Suggest(c.Request.Context(),
		c.Query("query"), c.Query("storyId"))
	if err != nil {
		h.logger.Error("mention suggestions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "suggestions_failed"})
		return
	}
	c.JSON(http.StatusOK, suggestions)
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	var readFilter *bool
	if raw, ok := c.GetQuery("read"); ok {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_read_filter"})
			return
		}
		readFilter = &parsed
	}

	records, err := h.notifications.List(c.Request.Context(), c.GetString(userIDContextKey), readFilter)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *httpHandler) handleUnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("unread count failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	err := h.notifications.MarkRead(c.Request.Context(),
		c.GetString(userIDContextKey), c.Param("notificationId"))
	if err != nil {
		h.respondNotificationError(c, "mark read failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (h *httpHandler) handleMarkAllRead(c *gin.Context) {
	if err := h.notifications.MarkAllRead(c.Request.Context(), c.GetString(userIDContextKey)); err != nil {
		h.logger.Error("mark all read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mark_all_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (h *httpHandler) handleDeleteNotification(c *gin.Context) {
	err := h.notifications.Delete(c.Request.Context(),
		c.GetString(userIDContextKey), c.Param("notificationId"))
	if err != nil {
		h.respondNotificationError(c, "delete notification failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleDeleteRead(c *gin.Context) {
	if err := h.notifications.DeleteAllRead(c.Request.Context(), c.GetString(userIDContextKey)); err != nil {
		h.logger.Error("delete read sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handleAddFavorite(c *gin.Context) {
	err := h.catalog.AddFavorite(c.Request.Context(), c.GetString(userIDContextKey), c.Param("storyId"))
	if err != nil {
		h.respondCatalogError(c, "add favorite failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorited": true})
}

func (h *httpHandler) handleRemoveFavorite(c *gin.Context) {
	err := h.catalog.RemoveFavorite(c.Request.Context(), c.GetString(userIDContextKey), c.Param("storyId"))
	if err != nil {
		h.respondCatalogError(c, "remove favorite failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorited": false})
}

func (h *httpHandler) handleRecordRead(c *gin.Context) {
	err := h.catalog.RecordRead(c.Request.Context(), c.GetString(userIDContextKey),
		c.Param("storyId"), c.Param("chapterId"))
	if err != nil {
		h.respondCatalogError(c, "record read failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

func (h *httpHandler) handleReadingHistory(c *gin.Context) {
	entries, err := h.catalog.History(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.logger.Error("reading history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_failed"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *httpHandler) respondThreadError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, threads.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_required"})
	case errors.Is(err, threads.ErrCommentNotFound), errors.Is(err, threads.ErrReplyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, threads.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		h.logger.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (h *httpHandler) respondNotificationError(c *gin.Context, message string, err error) {
	if errors.Is(err, notifications.ErrNotificationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	h.logger.Error(message, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func (h *httpHandler) respondCatalogError(c *gin.Context, message string, err error) {
	if errors.Is(err, catalog.ErrStoryNotFound) || errors.Is(err, catalog.ErrChapterNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	h.logger.Error(message, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
