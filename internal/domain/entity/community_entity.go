package entity

import "time"

// GroupRole is the role a user holds inside a group
type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

type Group struct {
	ID          string
	Name        string
	Description string
	City        string
	Tags        []string
	MemberCount int
	CreatedBy   string
	CreatedAt   time.Time
}

// Membership links a user to a group; (GroupID, UserID) is unique.
type Membership struct {
	GroupID  string
	UserID   string
	Role     GroupRole
	JoinedAt time.Time
}

type Event struct {
	ID            string
	Title         string
	Description   string
	City          string
	Venue         string
	StartsAt      time.Time
	OrganizerID   string
	Tags          []string
	AttendeeCount int
	CreatedAt     time.Time
}
