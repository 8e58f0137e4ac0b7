package feed

import (
	"time"
)

// Feed document types

type ParsedFeed struct {
	Title       string
	Link        string
	Description string

	Language       *string
	Copyright      *string
	ManagingEditor *string
	WebMaster      *string
	PubDate        *time.Time
	LastBuildDate  *time.Time
	Categories     []Category // never nil
	Generator      *string
	TTL            *time.Duration
	Image          *Image
}

type ParsedEntry struct {
	Title       *string
	Link        *string // permalink, used as the item key within a feed
	Description *string
	Author      *string
	Categories  []Category // never nil
	Comments    *string
	Enclosure   *Enclosure
	GUID        *string // raw, not used for identity
	PubDate     *time.Time
}

type Category struct {
	Title  string  `json:"title"`
	Domain *string `json:"domain"`
}

type Image struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	Width       *int    `json:"width"`
	Height      *int    `json:"height"`
	Description *string `json:"description"`
}

type Enclosure struct {
	URL    string `json:"url"`
	Length int64  `json:"length"`
	Type   string `json:"type"`
}

// LinkKey returns the entry link, or "" when the entry has none.
func (e ParsedEntry) LinkKey() string {
	if e.Link == nil {
		return ""
	}
	return *e.Link
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled bool `yaml:"enabled"`
}
