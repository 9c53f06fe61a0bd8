package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/pkg/response"
	"github.com/mundotango/mundo-tango-api/pkg/validation"
)

type CommunityHandler struct {
	Svc    *app.CommunityService
	Logger *logrus.Logger
}

func NewCommunityHandler(svc *app.CommunityService, logger *logrus.Logger) *CommunityHandler {
	return &CommunityHandler{Svc: svc, Logger: logger}
}

type createGroupRequest struct {
	Name        string   `json:"name" binding:"required,max=120"`
	Description string   `json:"description" binding:"max=2000"`
	City        string   `json:"city" binding:"max=120"`
	Tags        []string `json:"tags" binding:"omitempty,max=20,dive,max=40"`
}

type createEventRequest struct {
	Title       string    `json:"title" binding:"required,max=200"`
	Description string    `json:"description" binding:"max=5000"`
	City        string    `json:"city" binding:"max=120"`
	Venue       string    `json:"venue" binding:"max=200"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	Tags        []string  `json:"tags" binding:"omitempty,max=20,dive,max=40"`
}

func (h *CommunityHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	g, err := h.Svc.CreateGroup(c.Request.Context(), c.GetString("userID"), app.CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		City:        req.City,
		Tags:        req.Tags,
	})
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toGroupView(g), "group created", nil)
}

func (h *CommunityHandler) ListGroups(c *gin.Context) {
	gs, err := h.Svc.ListGroups(c.Request.Context(), c.Query("city"), queryInt(c, "limit", 0))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	out := make([]groupView, 0, len(gs))
	for _, g := range gs {
		out = append(out, toGroupView(g))
	}
	response.Success(c, http.StatusOK, out, "groups", gin.H{"count": len(out)})
}

func (h *CommunityHandler) JoinGroup(c *gin.Context) {
	g, err := h.Svc.JoinGroup(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toGroupView(g), "joined group", nil)
}

func (h *CommunityHandler) LeaveGroup(c *gin.Context) {
	if err := h.Svc.LeaveGroup(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": false}, "left group", nil)
}

func (h *CommunityHandler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	e, err := h.Svc.CreateEvent(c.Request.Context(), c.GetString("userID"), app.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		Tags:        req.Tags,
	})
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toEventView(e), "event created", nil)
}

func (h *CommunityHandler) ListEvents(c *gin.Context) {
	es, err := h.Svc.ListUpcoming(c.Request.Context(), c.Query("city"), queryInt(c, "limit", 0))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	out := make([]eventView, 0, len(es))
	for _, e := range es {
		out = append(out, toEventView(e))
	}
	response.Success(c, http.StatusOK, out, "events", gin.H{"count": len(out)})
}

func (h *CommunityHandler) RSVP(c *gin.Context) {
	n, err := h.Svc.RSVP(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attendee_count": n}, "rsvp recorded", nil)
}
