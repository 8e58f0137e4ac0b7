package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-harvest/app/ingest"
)

// RefreshFeedTask polls one stored feed. It is never retried: a failed poll
// already pushed the feed's next run out by backing off.
type RefreshFeedTask struct {
	Task
	FeedID   string
	executor Executor
}

func NewRefreshFeedTask(feedID string, executor Executor) *RefreshFeedTask {
	task := NewTask(TaskTypeRefreshFeed, feedID)
	task.MaxRetries = 0

	return &RefreshFeedTask{
		Task:     task,
		FeedID:   feedID,
		executor: executor,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.executor.Execute(ctx, ingest.RefreshFeedOp{FeedID: t.FeedID})
	if errors.Is(err, ingest.ErrFeedNotFound) {
		slog.Warn("Feed no longer exists, skipping", "feed", t.FeedID)
		return nil
	}

	refreshed, _ := result.(*ingest.RefreshResult)
	if err != nil {
		if refreshed != nil {
			slog.Warn("Feed poll failed, backing off", "feed", t.FeedID, "interval", refreshed.Interval, "error", err)
		}
		return err
	}
	if refreshed == nil {
		return fmt.Errorf("unexpected result %T", result)
	}

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed", t.FeedID,
		"duration", t.GetDuration(),
		"new", refreshed.Inserted,
		"interval", refreshed.Interval)

	return nil
}
