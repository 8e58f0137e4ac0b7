package database

import (
	"time"
)

type Category struct {
	Title  string  `json:"title"`
	Domain *string `json:"domain,omitempty"`
}

type Image struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	Description *string `json:"description,omitempty"`
}

type Enclosure struct {
	URL    string `json:"url"`
	Length int64  `json:"length"`
	Type   string `json:"type"`
}

type Feed struct {
	ID  string // Database UUID
	URL string // Source URL, unique
	FeedMetadata

	Interval    time.Duration // Live polling interval
	NextFetchAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time // Last successful refresh
}

type Item struct {
	ID     string `json:"id"`
	FeedID string `json:"feed_id"`
	FeedItem
	CreatedAt time.Time `json:"created_at"`
}
