package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/ingest"
)

// Executor runs ingest operations. Implemented by *ingest.Orchestrator.
type Executor interface {
	Execute(ctx context.Context, op ingest.Operation) (ingest.Result, error)
}

// FeedStore is the part of the store the scheduler needs to restore and
// persist polling schedules.
type FeedStore interface {
	ListFeeds(ctx context.Context) ([]database.Feed, error)
	UpdateSchedule(ctx context.Context, feedID string, interval time.Duration, nextFetchAt time.Time) error
}

// TaskSchedulerInterface is what the API and the config watcher use to
// queue work.
type TaskSchedulerInterface interface {
	Start(executor Executor) error
	Stop()
	EnqueueCreate(url string) error
	EnqueueRefresh(feedID string) error
}
