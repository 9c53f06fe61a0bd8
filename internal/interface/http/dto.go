package handlers

import (
	"time"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
)

// Entities carry no JSON tags; these views are the wire shapes.

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	City      string    `json:"city"`
	Interests []string  `json:"interests"`
	Verified  bool      `json:"is_verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserView(u *entity.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		City:      u.City,
		Interests: nonNil(u.Interests),
		Verified:  u.IsVerified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type postView struct {
	ID         string            `json:"id"`
	AuthorID   string            `json:"author_id"`
	Content    string            `json:"content"`
	Visibility entity.Visibility `json:"visibility"`
	Tags       []string          `json:"tags"`
	CreatedAt  time.Time         `json:"created_at"`
}

func toPostView(p *entity.Post) postView {
	return postView{ID: p.ID, AuthorID: p.AuthorID, Content: p.Content, Visibility: p.Visibility, Tags: nonNil(p.Tags), CreatedAt: p.CreatedAt}
}

func toPostViews(ps []*entity.Post) []postView {
	out := make([]postView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPostView(p))
	}
	return out
}

type commentView struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentView(c *entity.Comment) commentView {
	return commentView{ID: c.ID, PostID: c.PostID, AuthorID: c.AuthorID, Content: c.Content, CreatedAt: c.CreatedAt}
}

type groupView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	City        string    `json:"city"`
	Tags        []string  `json:"tags"`
	MemberCount int       `json:"member_count"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func toGroupView(g *entity.Group) groupView {
	return groupView{ID: g.ID, Name: g.Name, Description: g.Description, City: g.City, Tags: nonNil(g.Tags), MemberCount: g.MemberCount, CreatedBy: g.CreatedBy, CreatedAt: g.CreatedAt}
}

type eventView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	City          string    `json:"city"`
	Venue         string    `json:"venue"`
	StartsAt      time.Time `json:"starts_at"`
	OrganizerID   string    `json:"organizer_id"`
	Tags          []string  `json:"tags"`
	AttendeeCount int       `json:"attendee_count"`
}

func toEventView(e *entity.Event) eventView {
	return eventView{ID: e.ID, Title: e.Title, Description: e.Description, City: e.City, Venue: e.Venue, StartsAt: e.StartsAt, OrganizerID: e.OrganizerID, Tags: nonNil(e.Tags), AttendeeCount: e.AttendeeCount}
}

type homeView struct {
	ID            string    `json:"id"`
	HostID        string    `json:"host_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	PricePerNight int64     `json:"price_per_night_cents"`
	PhotoURLs     []string  `json:"photo_urls"`
	CreatedAt     time.Time `json:"created_at"`
}

func toHomeView(h *entity.HostHome) homeView {
	return homeView{ID: h.ID, HostID: h.HostID, Title: h.Title, Description: h.Description, City: h.City, Country: h.Country, PricePerNight: h.PricePerNight, PhotoURLs: nonNil(h.PhotoURLs), CreatedAt: h.CreatedAt}
}

type tierView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	PriceCents int64    `json:"price_cents"`
	Interval   string   `json:"interval"`
	Features   []string `json:"features"`
}

func toTierView(t *entity.SubscriptionTier) tierView {
	return tierView{ID: t.ID, Name: t.Name, PriceCents: t.PriceCents, Interval: t.Interval, Features: nonNil(t.Features)}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
