package api

import (
	"context"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/ingest"
	"github.com/lysyi3m/rss-harvest/app/tasks"
)

type GeneratorInterface interface {
	Run(feed database.Feed, items []database.Item) (string, error)
}

// FeedReader is the read side of the store used by the handlers.
type FeedReader interface {
	GetFeed(ctx context.Context, feedID string) (*database.Feed, error)
	ListFeeds(ctx context.Context) ([]database.Feed, error)
	GetFeedCount(ctx context.Context) (int, error)
	GetItems(ctx context.Context, feedID string, limit int) ([]database.Item, error)
	GetItemCount(ctx context.Context, feedID string) (int, error)
}

type TaskQueue interface {
	EnqueueRefresh(feedID string) error
	ScheduledCount() int
}

var (
	_ GeneratorInterface = (*feed.Generator)(nil)
	_ FeedReader         = (*database.Store)(nil)
	_ TaskQueue          = (*tasks.Scheduler)(nil)
	_ tasks.Executor     = (*ingest.Orchestrator)(nil)
)

type Handler struct {
	store       FeedReader
	executor    tasks.Executor
	scheduler   TaskQueue
	generator   GeneratorInterface
	configCache *feed.ConfigCache
}

type createFeedRequest struct {
	URL string `json:"url" binding:"required"`
}
