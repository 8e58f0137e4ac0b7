package ingest

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type FeedParser interface {
	Run(data []byte) (*feed.ParsedFeed, []feed.ParsedEntry, error)
}

// Store must apply CreateFeed and SaveRefresh atomically.
type Store interface {
	GetFeed(ctx context.Context, feedID string) (*database.Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*database.Feed, error)
	GetKnownLinks(ctx context.Context, feedID string) ([]string, error)
	CreateFeed(ctx context.Context, url string, metadata database.FeedMetadata, items []database.FeedItem, interval time.Duration, nextFetchAt time.Time) (*database.Feed, int, error)
	SaveRefresh(ctx context.Context, feedID string, metadata database.FeedMetadata, items []database.FeedItem) (int, error)
}

// PeriodicTasks owns the trigger that eventually calls RefreshFeed again.
type PeriodicTasks interface {
	SetInterval(ctx context.Context, feedID string, interval time.Duration) error
}
