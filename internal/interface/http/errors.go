package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/mundotango/mundo-tango-api/internal/application"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/internal/realtime"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
	"github.com/mundotango/mundo-tango-api/pkg/response"
)

// statusOf maps service errors to an HTTP status and a client message.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, app.ErrForbidden), errors.Is(err, app.ErrNotMember):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrPostNotFound),
		errors.Is(err, app.ErrGroupNotFound),
		errors.Is(err, app.ErrEventNotFound),
		errors.Is(err, app.ErrHomeNotFound),
		errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, app.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, app.ErrStorageDisabled), errors.Is(err, app.ErrQueueDisabled):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, app.ErrSelfFollow),
		errors.Is(err, app.ErrInvalidToken),
		errors.Is(err, app.ErrWeakPassword),
		errors.Is(err, app.ErrInvalidVisibility),
		errors.Is(err, app.ErrInvalidContent),
		errors.Is(err, app.ErrInvalidEvent),
		errors.Is(err, app.ErrEventPast),
		errors.Is(err, app.ErrInvalidHome),
		errors.Is(err, app.ErrInvalidKind),
		errors.Is(err, app.ErrInvalidCacheOp),
		errors.Is(err, realtime.ErrInvalidBody):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// fail writes err as an error envelope. Unexpected errors are logged and
// never leaked to the client.
func fail(c *gin.Context, logger *logrus.Logger, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError && logger != nil {
		helpers.LogError(logger, "request failed", err, logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		})
	}
	response.Error[any](c, status, msg, nil)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
