package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/pkg/response"
)

// EmailHandler queues recommendation digest emails for the email worker.
type EmailHandler struct {
	Recs        *app.RecommendationService
	Logger      *logrus.Logger
	SendEnabled bool
}

func NewEmailHandler(recs *app.RecommendationService, logger *logrus.Logger, sendEnabled bool) *EmailHandler {
	return &EmailHandler{Recs: recs, Logger: logger, SendEnabled: sendEnabled}
}

// Digest enqueues the caller's digest.
func (h *EmailHandler) Digest(c *gin.Context) {
	// If sending disabled, short-circuit
	if !h.SendEnabled {
		response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": false, "disabled": true}, "email sending disabled", nil)
		return
	}
	job, err := h.Recs.EnqueueDigest(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).Warn("failed to publish digest job")
		}
		fail(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": true, "to": job.To, "template": job.Template}, "digest enqueued", nil)
}
