package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/internal/realtime"
	"github.com/mundotango/mundo-tango-api/pkg/response"
)

// ChatHandler upgrades group members to the group's chat room.
type ChatHandler struct {
	Community *app.CommunityService
	Hub       *realtime.Hub
	Logger    *logrus.Logger
	upgrader  websocket.Upgrader
}

// NewChatHandler accepts browser origins listed in allowedOrigins. An empty
// list allows any origin, which is what local development wants.
func NewChatHandler(community *app.CommunityService, hub *realtime.Hub, logger *logrus.Logger, allowedOrigins []string) *ChatHandler {
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return &ChatHandler{
		Community: community,
		Hub:       hub,
		Logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			},
		},
	}
}

// Connect handles GET /groups/:id/chat.
func (h *ChatHandler) Connect(c *gin.Context) {
	userID := c.GetString("userID")
	groupID := c.Param("id")
	if _, err := h.Community.GetGroup(c.Request.Context(), groupID); err != nil {
		fail(c, h.Logger, err)
		return
	}
	ok, err := h.Community.IsMember(c.Request.Context(), userID, groupID)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	if !ok {
		response.Error[any](c, http.StatusForbidden, app.ErrNotMember.Error(), nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		if h.Logger != nil {
			h.Logger.WithError(err).Debug("websocket upgrade failed")
		}
		return
	}
	h.Hub.Serve(h.Hub.Join(groupID, userID, conn))
}
