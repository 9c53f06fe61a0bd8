package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/pkg/response"
)

type PricingHandler struct {
	Svc    *app.PricingService
	Logger *logrus.Logger
}

func NewPricingHandler(svc *app.PricingService, logger *logrus.Logger) *PricingHandler {
	return &PricingHandler{Svc: svc, Logger: logger}
}

func (h *PricingHandler) Tiers(c *gin.Context) {
	tiers, err := h.Svc.Tiers(c.Request.Context())
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	out := make([]tierView, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, toTierView(t))
	}
	response.Success(c, http.StatusOK, out, "pricing tiers", nil)
}
