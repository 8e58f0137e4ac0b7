package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemRepository handles database operations for feed items
type ItemRepository struct {
	db *DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// GetKnownLinks returns the links of all stored items of a feed. Link-less
// items are not included.
func (r *ItemRepository) GetKnownLinks(ctx context.Context, feedID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT link FROM items WHERE feed_id = ? AND link IS NOT NULL`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get known links: %w", err)
	}
	defer rows.Close()

	links := []string{}
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link rows: %w", err)
	}

	return links, nil
}

// GetItems returns the newest items of a feed first, undated items last
func (r *ItemRepository) GetItems(ctx context.Context, feedID string, limit int) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, feed_id, title, link, description, author, categories,
		       comments, enclosure, guid, pub_date, created_at
		FROM items
		WHERE feed_id = ?
		ORDER BY pub_date IS NULL, pub_date DESC, created_at DESC, rowid DESC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (r *ItemRepository) GetItemCount(ctx context.Context, feedID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE feed_id = ?", feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// insertItems appends items inside tx. A link already stored for the feed
// is skipped, so the returned count can be lower than len(items).
func insertItems(ctx context.Context, tx *sql.Tx, feedID string, items []FeedItem, now time.Time) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (
			id, feed_id, title, link, description, author, categories,
			comments, enclosure, guid, pub_date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, link) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		categories, err := marshalCategories(item.Categories)
		if err != nil {
			return 0, err
		}

		enclosure, err := marshalOptional(item.Enclosure)
		if err != nil {
			return 0, fmt.Errorf("failed to encode enclosure: %w", err)
		}

		// Empty links are stored as NULL so they never collide
		link := nullString(item.Link)
		if link.String == "" {
			link = sql.NullString{}
		}

		result, err := stmt.ExecContext(ctx,
			uuid.NewString(), feedID, nullString(item.Title), link, nullString(item.Description),
			nullString(item.Author), categories, nullString(item.Comments), enclosure,
			nullString(item.GUID), nullTime(item.PubDate), now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert item: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to insert item: %w", err)
		}
		inserted += int(affected)
	}

	return inserted, nil
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item                             Item
		title, link, description, author sql.NullString
		comments, enclosure, guid        sql.NullString
		categories                       string
		pubDate                          sql.NullTime
	)

	err := row.Scan(
		&item.ID, &item.FeedID, &title, &link, &description, &author, &categories,
		&comments, &enclosure, &guid, &pubDate, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Title = stringPtr(title)
	item.Link = stringPtr(link)
	item.Description = stringPtr(description)
	item.Author = stringPtr(author)
	item.Comments = stringPtr(comments)
	item.GUID = stringPtr(guid)
	item.PubDate = timePtr(pubDate)

	if item.Categories, err = unmarshalCategories(categories); err != nil {
		return nil, err
	}
	if item.Enclosure, err = unmarshalOptional[Enclosure](enclosure); err != nil {
		return nil, fmt.Errorf("failed to decode enclosure: %w", err)
	}

	return &item, nil
}
