package database

import (
	"time"
)

// FeedMetadata is the channel snapshot overwritten on every successful refresh.
type FeedMetadata struct {
	Title          string
	Link           string
	Description    string
	Language       *string
	Copyright      *string
	ManagingEditor *string
	WebMaster      *string
	PubDate        *time.Time
	LastBuildDate  *time.Time
	Categories     []Category
	Generator      *string
	TTL            *time.Duration
	Image          *Image
}

type FeedItem struct {
	Title       *string    `json:"title,omitempty"`
	Link        *string    `json:"link,omitempty"` // nil for link-less entries
	Description *string    `json:"description,omitempty"`
	Author      *string    `json:"author,omitempty"`
	Categories  []Category `json:"categories,omitempty"`
	Comments    *string    `json:"comments,omitempty"`
	Enclosure   *Enclosure `json:"enclosure,omitempty"`
	GUID        *string    `json:"guid,omitempty"`
	PubDate     *time.Time `json:"pub_date,omitempty"`
}

type rowScanner interface {
	Scan(dest ...any) error
}
