package application

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfFollow         = errors.New("cannot follow yourself")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")

	ErrPostNotFound      = errors.New("post not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidVisibility = errors.New("visibility must be public, friends or private")
	ErrInvalidContent    = errors.New("invalid content length")

	ErrGroupNotFound = errors.New("group not found")
	ErrEventNotFound = errors.New("event not found")
	ErrEventPast     = errors.New("event already started")
	ErrInvalidEvent  = errors.New("event must start in the future")
	ErrNotMember     = errors.New("not a group member")

	ErrHomeNotFound     = errors.New("home not found")
	ErrInvalidHome      = errors.New("invalid home listing")
	ErrUnsupportedMedia = errors.New("only image uploads are accepted")
	ErrStorageDisabled  = errors.New("object storage not configured")

	ErrInvalidKind    = errors.New("recommendation kind must be events, groups or people")
	ErrQueueDisabled  = errors.New("job queue not configured")
	ErrInvalidCacheOp = errors.New("invalid cache operation")
)
