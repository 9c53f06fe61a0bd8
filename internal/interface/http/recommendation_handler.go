package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/pkg/response"
)

type RecommendationHandler struct {
	Svc    *app.RecommendationService
	Logger *logrus.Logger
}

func NewRecommendationHandler(svc *app.RecommendationService, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{Svc: svc, Logger: logger}
}

// List handles GET /recommendations/:kind where kind is events, groups or people.
func (h *RecommendationHandler) List(c *gin.Context) {
	recs, err := h.Svc.For(c.Request.Context(), c.GetString("userID"), app.RecKind(c.Param("kind")), queryInt(c, "limit", 0))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	if recs == nil {
		recs = []app.Recommendation{}
	}
	response.Success(c, http.StatusOK, recs, "recommendations", gin.H{"count": len(recs)})
}
