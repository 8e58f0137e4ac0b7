package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const feedColumns = `id, url, title, link, description, language, copyright, managing_editor, web_master,
	pub_date, last_build_date, categories, generator, ttl_seconds, image,
	interval_seconds, next_fetch_at, created_at, updated_at`

// FeedRepository handles database operations for feeds
type FeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// GetFeed returns nil, nil when no feed has this ID
func (r *FeedRepository) GetFeed(ctx context.Context, feedID string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, feedID)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

// GetFeedByURL returns nil, nil when no feed has this exact URL
func (r *FeedRepository) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}

	return feed, nil
}

func (r *FeedRepository) ListFeeds(ctx context.Context) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	feeds := []Feed{}
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// CreateFeed inserts the feed row and its initial items in one transaction.
// If another feed already owns url, nothing is written and ErrFeedExists is
// returned.
func (r *FeedRepository) CreateFeed(ctx context.Context, url string, metadata FeedMetadata, items []FeedItem, interval time.Duration, nextFetchAt time.Time) (*Feed, int, error) {
	metadataValues, err := metadataArgs(metadata)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now().UTC()
	feed := &Feed{
		ID:           uuid.NewString(),
		URL:          url,
		FeedMetadata: metadata,
		Interval:     interval,
		NextFetchAt:  &nextFetchAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	args := append([]any{feed.ID, url}, metadataValues...)
	args = append(args, intervalSeconds(interval), nextFetchAt.UTC(), now, now)

	var inserted int
	err = r.db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO feeds (`+feedColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (url) DO NOTHING
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to insert feed: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to insert feed: %w", err)
		}
		if affected == 0 {
			return ErrFeedExists
		}

		inserted, err = insertItems(ctx, tx, feed.ID, items, now)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	return feed, inserted, nil
}

// SaveRefresh overwrites the feed metadata and appends new items. Readers see
// both changes or neither.
func (r *FeedRepository) SaveRefresh(ctx context.Context, feedID string, metadata FeedMetadata, items []FeedItem) (int, error) {
	metadataValues, err := metadataArgs(metadata)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	args := append(metadataValues, now, feedID)

	var inserted int
	err = r.db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE feeds
			SET title = ?, link = ?, description = ?, language = ?, copyright = ?,
			    managing_editor = ?, web_master = ?, pub_date = ?, last_build_date = ?,
			    categories = ?, generator = ?, ttl_seconds = ?, image = ?, updated_at = ?
			WHERE id = ?
		`, args...)
		if err != nil {
			return fmt.Errorf("failed to update feed metadata: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update feed metadata: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}

		inserted, err = insertItems(ctx, tx, feedID, items, now)
		return err
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// UpdateSchedule stores the polling interval and the time of the next fetch
func (r *FeedRepository) UpdateSchedule(ctx context.Context, feedID string, interval time.Duration, nextFetchAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET interval_seconds = ?, next_fetch_at = ?
		WHERE id = ?
	`, intervalSeconds(interval), nextFetchAt.UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to update feed schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update feed schedule: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func metadataArgs(m FeedMetadata) ([]any, error) {
	categories, err := marshalCategories(m.Categories)
	if err != nil {
		return nil, err
	}

	image, err := marshalOptional(m.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	var ttlSeconds sql.NullInt64
	if m.TTL != nil {
		ttlSeconds = sql.NullInt64{Int64: int64(*m.TTL / time.Second), Valid: true}
	}

	return []any{
		m.Title, m.Link, m.Description,
		nullString(m.Language), nullString(m.Copyright), nullString(m.ManagingEditor), nullString(m.WebMaster),
		nullTime(m.PubDate), nullTime(m.LastBuildDate),
		categories, nullString(m.Generator), ttlSeconds, image,
	}, nil
}

func scanFeed(row rowScanner) (*Feed, error) {
	var (
		feed                                Feed
		language, copyright, managingEditor sql.NullString
		webMaster, generator, image         sql.NullString
		pubDate, lastBuildDate, nextFetchAt sql.NullTime
		categories                          string
		ttlSeconds                          sql.NullInt64
		intervalSeconds                     int64
	)

	err := row.Scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.Link, &feed.Description,
		&language, &copyright, &managingEditor, &webMaster,
		&pubDate, &lastBuildDate, &categories, &generator, &ttlSeconds, &image,
		&intervalSeconds, &nextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.Language = stringPtr(language)
	feed.Copyright = stringPtr(copyright)
	feed.ManagingEditor = stringPtr(managingEditor)
	feed.WebMaster = stringPtr(webMaster)
	feed.Generator = stringPtr(generator)
	feed.PubDate = timePtr(pubDate)
	feed.LastBuildDate = timePtr(lastBuildDate)
	feed.NextFetchAt = timePtr(nextFetchAt)
	feed.Interval = time.Duration(intervalSeconds) * time.Second

	if ttlSeconds.Valid {
		ttl := time.Duration(ttlSeconds.Int64) * time.Second
		feed.TTL = &ttl
	}

	if feed.Categories, err = unmarshalCategories(categories); err != nil {
		return nil, err
	}
	if feed.Image, err = unmarshalOptional[Image](image); err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return &feed, nil
}

// intervalSeconds rounds up so a stored interval is never shorter than the
// one that was scheduled.
func intervalSeconds(interval time.Duration) int64 {
	seconds := int64(interval / time.Second)
	if interval%time.Second > 0 {
		seconds++
	}
	return seconds
}
