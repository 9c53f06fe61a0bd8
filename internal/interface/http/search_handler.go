package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
	"github.com/mundotango/mundo-tango-api/pkg/response"
)

type SearchHandler struct {
	Svc    *app.SearchService
	Logger *logrus.Logger
}

func NewSearchHandler(svc *app.SearchService, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{Svc: svc, Logger: logger}
}

var knownTypes = map[search.DocType]bool{
	search.TypePost:  true,
	search.TypeEvent: true,
	search.TypeGroup: true,
	search.TypeUser:  true,
	search.TypeHome:  true,
}

// Search handles GET /search?q=&types=post,event&city=&limit=&offset=.
func (h *SearchHandler) Search(c *gin.Context) {
	q := search.Query{
		Text:   c.Query("q"),
		City:   strings.TrimSpace(c.Query("city")),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			dt := search.DocType(strings.ToLower(strings.TrimSpace(t)))
			if dt == "" {
				continue
			}
			if !knownTypes[dt] {
				response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"types": "unknown type " + string(dt)})
				return
			}
			q.Types = append(q.Types, dt)
		}
	}
	q = q.Normalize()
	res, err := h.Svc.Search(c.Request.Context(), q)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, res.Hits, "search results", response.Page{Limit: q.Limit, Offset: q.Offset, Total: res.Total})
}

func (h *SearchHandler) Suggest(c *gin.Context) {
	response.Success(c, http.StatusOK, h.Svc.Suggest(c.Query("q"), queryInt(c, "limit", 0)), "suggestions", nil)
}
