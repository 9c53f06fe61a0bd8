package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/pkg/response"
	"github.com/mundotango/mundo-tango-api/pkg/validation"
)

type ListingHandler struct {
	Svc    *app.ListingService
	Logger *logrus.Logger
}

func NewListingHandler(svc *app.ListingService, logger *logrus.Logger) *ListingHandler {
	return &ListingHandler{Svc: svc, Logger: logger}
}

type createHomeRequest struct {
	Title         string `json:"title" binding:"required,max=200"`
	Description   string `json:"description" binding:"max=5000"`
	City          string `json:"city" binding:"required,max=120"`
	Country       string `json:"country" binding:"max=120"`
	PricePerNight int64  `json:"price_per_night_cents" binding:"gte=0"`
}

func (h *ListingHandler) CreateHome(c *gin.Context) {
	var req createHomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	home, err := h.Svc.CreateHome(c.Request.Context(), c.GetString("userID"), app.CreateHomeInput{
		Title:         req.Title,
		Description:   req.Description,
		City:          req.City,
		Country:       req.Country,
		PricePerNight: req.PricePerNight,
	})
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, toHomeView(home), "home created", nil)
}

func (h *ListingHandler) GetHome(c *gin.Context) {
	home, err := h.Svc.GetHome(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, toHomeView(home), "home", nil)
}

func (h *ListingHandler) ListHomes(c *gin.Context) {
	homes, err := h.Svc.ListHomes(c.Request.Context(), c.Query("city"), queryInt(c, "limit", 0))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	out := make([]homeView, 0, len(homes))
	for _, hm := range homes {
		out = append(out, toHomeView(hm))
	}
	response.Success(c, http.StatusOK, out, "homes", gin.H{"count": len(out)})
}

// AddPhoto accepts a multipart "file" field; only the host may upload.
func (h *ListingHandler) AddPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "file is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.AddPhoto(c.Request.Context(), c.GetString("userID"), c.Param("id"), f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"url": url}, "photo added", nil)
}
