package ingest

import (
	"time"

	"github.com/lysyi3m/rss-harvest/app/database"
	"github.com/lysyi3m/rss-harvest/app/feed"
)

// Operation is one of CreateFeedOp, RefreshFeedOp or ReconcileEntriesOp.
type Operation interface {
	operation()
}

type CreateFeedOp struct {
	URL string
}

type RefreshFeedOp struct {
	FeedID string
}

// ReconcileEntriesOp is a dry run: nothing is written.
type ReconcileEntriesOp struct {
	FeedID  string
	Entries []feed.ParsedEntry
}

func (CreateFeedOp) operation()       {}
func (RefreshFeedOp) operation()      {}
func (ReconcileEntriesOp) operation() {}

// Result is the typed outcome of an Operation: *CreateResult,
// *RefreshResult or *ReconcileResult.
type Result interface {
	result()
}

type CreateResult struct {
	Feed     *database.Feed
	Created  bool // false when an existing feed was reused
	Inserted int
}

type RefreshResult struct {
	FeedID   string
	Inserted int
	Interval time.Duration
}

type ReconcileResult struct {
	FeedID string
	New    []feed.ParsedEntry
}

func (*CreateResult) result()    {}
func (*RefreshResult) result()   {}
func (*ReconcileResult) result() {}
