package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-harvest/app/ingest"
)

// CreateFeedTask registers a feed seeded from a config file. Failed
// fetches are retried since nothing was stored yet.
type CreateFeedTask struct {
	Task
	URL      string
	executor Executor
}

func NewCreateFeedTask(url string, executor Executor) *CreateFeedTask {
	return &CreateFeedTask{
		Task:     NewTask(TaskTypeCreateFeed, url),
		URL:      url,
		executor: executor,
	}
}

func (t *CreateFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.executor.Execute(ctx, ingest.CreateFeedOp{URL: t.URL})
	if errors.Is(err, ingest.ErrInvalidURL) {
		t.MaxRetries = 0
	}
	if result == nil {
		return fmt.Errorf("failed to create feed: %w", err)
	}

	created, ok := result.(*ingest.CreateResult)
	if !ok {
		return fmt.Errorf("unexpected result %T", result)
	}
	if err != nil {
		// Feed was stored, only scheduling failed
		t.MaxRetries = 0
		return err
	}

	if created.Created {
		slog.Info("Task completed",
			"type", "CreateFeed",
			"feed", created.Feed.ID,
			"url", t.URL,
			"duration", t.GetDuration(),
			"new", created.Inserted)
	} else {
		slog.Debug("Feed already registered", "feed", created.Feed.ID, "url", t.URL)
	}

	return nil
}
