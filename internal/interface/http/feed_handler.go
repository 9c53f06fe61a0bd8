package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	"github.com/mundotango/mundo-tango-api/pkg/response"
	"github.com/mundotango/mundo-tango-api/pkg/validation"
)

type FeedHandler struct {
	Svc    *app.FeedService
	Logger *logrus.Logger
}

func NewFeedHandler(svc *app.FeedService, logger *logrus.Logger) *FeedHandler {
	return &FeedHandler{Svc: svc, Logger: logger}
}

type createPostRequest struct {
	Content    string `json:"content" binding:"required"`
	Visibility string `json:"visibility" binding:"omitempty,visibility"`
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// Feed pages with ?limit= and ?before= (RFC 3339). The meta carries the
// cursor for the next page.
func (h *FeedHandler) Feed(c *gin.Context) {
	var before time.Time
	if b := c.Query("before"); b != "" {
		t, err := time.Parse(time.RFC3339Nano, b)
		if err != nil {
			response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"before": "must be an RFC 3339 timestamp"})
			return
		}
		before = t
	}
	posts, err := h.Svc.Feed(c.Request.Context(), c.GetString("userID"), queryInt(c, "limit", 0), before)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	meta := gin.H{"count": len(posts)}
	if n := len(posts); n > 0 {
		meta["next_before"] = posts[n-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	response.Success(c, http.StatusOK, toPostViews(posts), "feed", meta)
}

func (h *FeedHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Svc.CreatePost(c.Request.Context(), c.GetString("userID"), app.CreatePostInput{
		Content:    req.Content,
		Visibility: entity.Visibility(req.Visibility),
	})
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toPostView(p), "post created", nil)
}

func (h *FeedHandler) GetPost(c *gin.Context) {
	p, err := h.Svc.GetPost(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toPostView(p), "post", nil)
}

func (h *FeedHandler) ListComments(c *gin.Context) {
	cs, err := h.Svc.ListComments(c.Request.Context(), c.GetString("userID"), c.Param("id"), queryInt(c, "limit", 0))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	out := make([]commentView, 0, len(cs))
	for _, cm := range cs {
		out = append(out, toCommentView(cm))
	}
	response.Success(c, http.StatusOK, out, "comments", nil)
}

func (h *FeedHandler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	cm, err := h.Svc.AddComment(c.Request.Context(), c.GetString("userID"), c.Param("id"), req.Content)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toCommentView(cm), "comment added", nil)
}

func (h *FeedHandler) Follow(c *gin.Context) {
	if err := h.Svc.Follow(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"following": true}, "followed", nil)
}

func (h *FeedHandler) Unfollow(c *gin.Context) {
	if err := h.Svc.Unfollow(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"following": false}, "unfollowed", nil)
}
