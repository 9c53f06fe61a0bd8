package entity

import "time"

// HostHome is a housing marketplace listing offered by a host.
type HostHome struct {
	ID            string
	HostID        string
	Title         string
	Description   string
	City          string
	Country       string
	PricePerNight int64 // cents
	PhotoURLs     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type SubscriptionTier struct {
	ID         string
	Name       string
	PriceCents int64
	Interval   string // month, year
	Features   []string
	SortOrder  int
}
