// Package ingest fetches feeds, merges their new entries into the store and
// decides when each feed is polled next.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
	"github.com/lysyi3m/rss-harvest/app/polling"
)

var (
	ErrFeedNotFound = errors.New("feed not found")
	ErrInvalidURL   = errors.New("feed URL must be an absolute http(s) URL")
)

type Orchestrator struct {
	fetcher Fetcher
	parser  FeedParser
	store   Store
	tasks   PeriodicTasks
	policy  polling.Policy
	now     func() time.Time
}

func NewOrchestrator(fetcher Fetcher, parser FeedParser, store Store, tasks PeriodicTasks, policy polling.Policy) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		parser:  parser,
		store:   store,
		tasks:   tasks,
		policy:  policy,
		now:     time.Now,
	}
}

func (o *Orchestrator) Execute(ctx context.Context, op Operation) (Result, error) {
	switch op := op.(type) {
	case CreateFeedOp:
		result, err := o.CreateFeed(ctx, op.URL)
		if result == nil {
			return nil, err
		}
		return result, err
	case RefreshFeedOp:
		result, err := o.RefreshFeed(ctx, op.FeedID)
		if result == nil {
			return nil, err
		}
		return result, err
	case ReconcileEntriesOp:
		result, err := o.Reconcile(ctx, op.FeedID, op.Entries)
		if result == nil {
			return nil, err
		}
		return result, err
	default:
		return nil, fmt.Errorf("unsupported operation %T", op)
	}
}

// CreateFeed registers the feed at rawURL. An existing feed with the same
// URL is returned as is. A fetch or parse failure leaves nothing behind.
func (o *Orchestrator) CreateFeed(ctx context.Context, rawURL string) (*CreateResult, error) {
	feedURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := o.store.GetFeedByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up feed: %w", err)
	}
	if existing != nil {
		return &CreateResult{Feed: existing}, nil
	}

	parsed, entries, err := o.fetchAndParse(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	state := o.policy.Initial(parsed.TTL)
	fresh := feed.Reconcile(nil, entries)

	created, inserted, err := o.store.CreateFeed(ctx, feedURL, toFeedMetadata(parsed), toFeedItems(fresh), state.Interval, o.now().Add(state.Interval))
	if errors.Is(err, database.ErrFeedExists) {
		// Lost the race to a concurrent creator
		existing, err := o.store.GetFeedByURL(ctx, feedURL)
		if err != nil {
			return nil, fmt.Errorf("failed to look up feed: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("feed %s disappeared after a conflicting insert", feedURL)
		}
		return &CreateResult{Feed: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store feed: %w", err)
	}

	result := &CreateResult{Feed: created, Created: true, Inserted: inserted}

	if err := o.tasks.SetInterval(ctx, created.ID, state.Interval); err != nil {
		return result, fmt.Errorf("failed to schedule feed: %w", err)
	}

	slog.Debug("Feed created", "feed", created.ID, "url", feedURL, "items", inserted, "interval", state.Interval)

	return result, nil
}

// RefreshFeed polls a stored feed once. On success the metadata is
// overwritten and new items appended; on fetch or parse failure nothing is
// written and the interval backs off. The new interval is pushed to the
// periodic tasks either way, and the poll error is still returned.
// A cancelled poll changes nothing, interval included.
func (o *Orchestrator) RefreshFeed(ctx context.Context, feedID string) (*RefreshResult, error) {
	current, err := o.store.GetFeed(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}
	if current == nil {
		return nil, ErrFeedNotFound
	}

	state := polling.State{Interval: current.Interval, TTL: current.TTL}
	result := &RefreshResult{FeedID: feedID}

	parsed, entries, err := o.fetchAndParse(ctx, current.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}

		state = o.policy.OnFailure(state)
		result.Interval = state.Interval

		if scheduleErr := o.tasks.SetInterval(ctx, feedID, state.Interval); scheduleErr != nil {
			return result, errors.Join(err, fmt.Errorf("failed to reschedule feed: %w", scheduleErr))
		}
		return result, err
	}

	known, err := o.store.GetKnownLinks(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load known links: %w", err)
	}

	fresh := feed.Reconcile(known, entries)

	inserted, err := o.store.SaveRefresh(ctx, feedID, toFeedMetadata(parsed), toFeedItems(fresh))
	if err != nil {
		return nil, fmt.Errorf("failed to save refresh: %w", err)
	}

	state.TTL = parsed.TTL
	state = o.policy.OnSuccess(state)
	result.Inserted = inserted
	result.Interval = state.Interval

	if err := o.tasks.SetInterval(ctx, feedID, state.Interval); err != nil {
		return result, fmt.Errorf("failed to reschedule feed: %w", err)
	}

	return result, nil
}

// Reconcile reports which entries would be inserted for a feed without
// writing anything.
func (o *Orchestrator) Reconcile(ctx context.Context, feedID string, entries []feed.ParsedEntry) (*ReconcileResult, error) {
	known, err := o.store.GetKnownLinks(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load known links: %w", err)
	}

	return &ReconcileResult{FeedID: feedID, New: feed.Reconcile(known, entries)}, nil
}

func (o *Orchestrator) fetchAndParse(ctx context.Context, feedURL string) (*feed.ParsedFeed, []feed.ParsedEntry, error) {
	data, err := o.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	parsed, entries, err := o.parser.Run(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return parsed, entries, nil
}

func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	return rawURL, nil
}
