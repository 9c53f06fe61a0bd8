package entity

import "time"

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is one of the supported visibility levels.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	}
	return false
}

type Post struct {
	ID         string
	AuthorID   string
	Content    string
	Visibility Visibility
	Tags       []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VisibleTo reports whether viewer may read the post. friends tells whether
// viewer and the author follow each other.
func (p *Post) VisibleTo(viewerID string, friends bool) bool {
	if p.AuthorID == viewerID && viewerID != "" {
		return true
	}
	switch p.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityFriends:
		return friends
	default:
		return false
	}
}

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}
