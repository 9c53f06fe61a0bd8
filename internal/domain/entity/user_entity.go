package entity

import (
	"time"
)

// User is the aggregate root for the user domain
// Passwords are stored as bcrypt hashes in Password field
type User struct {
	ID         string
	Email      string
	Password   string
	Name       string
	AvatarURL  string
	City       string
	Interests  []string
	IsVerified bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Follow is a directed edge between two users. Two follows in opposite
// directions make the users friends.
type Follow struct {
	FollowerID string
	FolloweeID string
	CreatedAt  time.Time
}
